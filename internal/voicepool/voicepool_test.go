package voicepool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxisynth-go/sf2synth/internal/gen"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
	"github.com/oxisynth-go/sf2synth/internal/voice"
)

func newTestVoice(noteID uint64, ch int, key uint8, exclusiveClass int) *voice.Voice {
	g := gen.Defaults()
	// Give the release stage a real, non-instantaneous duration so NoteOff
	// on a rendered voice (see renderFrame) produces an observable Sustained
	// state instead of collapsing straight to Off (the default ReleaseVolEnv
	// timecent converts to 0 samples).
	g[gen.ReleaseVolEnv] = gen.Value{Val: 0, Flags: gen.Set}
	if exclusiveClass != 0 {
		g[gen.ExclusiveClass] = gen.Value{Val: float64(exclusiveClass), Flags: gen.Set}
	}
	return voice.New(voice.Params{
		NoteID:        noteID,
		Channel:       ch,
		Key:           key,
		Velocity:      100,
		Sample:        &soundfont.Sample{Data: make([]int16, 256), SampleRate: 44100, OriginalPitch: 60},
		Gen:           g,
		OutSampleRate: 44100,
	}, voice.Controllers{})
}

// renderFrame renders one frame of v so its volume envelope leaves the zero
// level a new voice starts at; NoteOff on a voice still at level zero ends
// it at once instead of entering the release stage.
func renderFrame(v *voice.Voice) {
	v.Block(voice.Controllers{}, make([]float64, 1), make([]float64, 1), make([]float64, 1), make([]float64, 1))
}

func TestAllocateFillsEmptySlotsFirst(t *testing.T) {
	p := New(2)
	v1 := newTestVoice(1, 0, 60, 0)
	v2 := newTestVoice(2, 0, 62, 0)

	p.Allocate(v1, 0)
	p.Allocate(v2, 0)

	assert.ElementsMatch(t, []*voice.Voice{v1, v2}, p.Voices())
}

func TestAllocateStealsOnVoiceWhenPoolIsFull(t *testing.T) {
	p := New(1)
	onVoice := newTestVoice(1, 0, 60, 0)
	p.Allocate(onVoice, 0)

	// Fill the only slot with an On voice, then try to steal with a
	// second allocation: no Sustained/On voice other than onVoice exists,
	// so the global-lowest-amplitude tier must pick onVoice itself.
	nv := newTestVoice(2, 0, 64, 0)
	p.Allocate(nv, 0)

	assert.Equal(t, []*voice.Voice{nv}, p.Voices())
	assert.True(t, onVoice.Finished(), "the stolen voice should be immediately killed")
}

func TestAllocatePrefersSustainedVictimOverOn(t *testing.T) {
	p := New(2)
	onVoice := newTestVoice(1, 0, 60, 0)
	sustainedVoice := newTestVoice(2, 0, 62, 0)
	p.Allocate(onVoice, 0)
	p.Allocate(sustainedVoice, 0)
	renderFrame(sustainedVoice)
	sustainedVoice.NoteOff()

	nv := newTestVoice(3, 0, 64, 0)
	p.Allocate(nv, 0)

	assert.Contains(t, p.Voices(), onVoice)
	assert.Contains(t, p.Voices(), nv)
	assert.True(t, sustainedVoice.Finished())
}

func TestKillExclusiveClassOnlyKillsStrictlyOlder(t *testing.T) {
	p := New(4)
	older := newTestVoice(1, 0, 60, 5)
	younger := newTestVoice(2, 0, 62, 5)
	otherClass := newTestVoice(3, 0, 64, 7)
	p.Allocate(older, 0)
	p.Allocate(younger, 0)
	p.Allocate(otherClass, 0)

	p.KillExclusiveClass(0, 5, 2)

	assert.True(t, older.Finished())
	assert.False(t, younger.Finished(), "a voice sharing noteID with the new note-on is not strictly older")
	assert.False(t, otherClass.Finished())
}

func TestKillExclusiveClassZeroIsNoop(t *testing.T) {
	p := New(2)
	v := newTestVoice(1, 0, 60, 0)
	p.Allocate(v, 0)

	p.KillExclusiveClass(0, 0, 99)

	assert.False(t, v.Finished())
}

func TestChannelNoteOffOnlyReleasesMatchingOnVoices(t *testing.T) {
	p := New(3)
	v1 := newTestVoice(1, 0, 60, 0)
	v2 := newTestVoice(2, 0, 60, 0)
	v3 := newTestVoice(3, 1, 60, 0)
	p.Allocate(v1, 0)
	p.Allocate(v2, 0)
	p.Allocate(v3, 0)
	for _, v := range []*voice.Voice{v1, v2, v3} {
		renderFrame(v)
	}

	p.ChannelNoteOff(0, 60)

	assert.Equal(t, voice.StateSustained, v1.State())
	assert.Equal(t, voice.StateSustained, v2.State())
	assert.Equal(t, voice.StateOn, v3.State(), "a different channel's identical key is untouched")
}

func TestReapDropsFinishedVoices(t *testing.T) {
	p := New(2)
	v := newTestVoice(1, 0, 60, 0)
	p.Allocate(v, 0)
	v.Off()

	p.Reap()

	assert.Empty(t, p.Voices())
}

func TestAllOffKillsEveryVoice(t *testing.T) {
	p := New(3)
	var voices []*voice.Voice
	for i := uint64(0); i < 3; i++ {
		v := newTestVoice(i+1, int(i), 60, 0)
		voices = append(voices, v)
		p.Allocate(v, 0)
	}

	p.AllOff()

	for _, v := range voices {
		assert.True(t, v.Finished())
	}
}
