package sf2synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxisynth-go/sf2synth/internal/gen"
	"github.com/oxisynth-go/sf2synth/internal/settings"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
	"github.com/oxisynth-go/sf2synth/internal/voice"
)

// buildTestFont returns a minimal one-preset, one-instrument, one-zone bank
// covering the full MIDI key/velocity range, backed by a short constant
// sample loud enough to exercise the render path without needing a real SF2
// file on disk. The sample is longer than one 64-frame render block, so a
// voice is still sounding after the first block.
func buildTestFont() *soundfont.SoundFont {
	data := make([]int16, 1024)
	for i := range data {
		data[i] = 1000
	}
	sample := &soundfont.Sample{
		Name:          "test",
		Data:          data,
		LoopStart:     0,
		LoopEnd:       uint32(len(data) - 1),
		SampleRate:    44100,
		OriginalPitch: 60,
		PeakAmplitude: 1000,
	}
	// Give the release stage a real, non-instantaneous duration so NoteOff
	// produces an observable Sustained state instead of the default
	// ReleaseVolEnv timecent (-12000, 0 samples) collapsing straight to Off.
	instGen := gen.Defaults()
	instGen[gen.ReleaseVolEnv] = gen.Value{Val: 0, Flags: gen.Set}
	instZone := &soundfont.Zone{KeyLo: 0, KeyHi: 127, VelLo: 0, VelHi: 127, Gen: instGen, Sample: sample}
	inst := &soundfont.Instrument{Name: "test-inst", Zones: []*soundfont.Zone{instZone}}
	presetZone := &soundfont.Zone{KeyLo: 0, KeyHi: 127, VelLo: 0, VelHi: 127, Gen: gen.Defaults(), Inst: inst}
	preset := &soundfont.Preset{Name: "test-preset", Bank: 0, Num: 0, Zones: []*soundfont.Zone{presetZone}}
	return &soundfont.SoundFont{Name: "test.sf2", Samples: []*soundfont.Sample{sample}, Presets: []*soundfont.Preset{preset}}
}

func newTestSynth(t *testing.T) *Synth {
	t.Helper()
	cfg := settings.Default()
	cfg.Polyphony = 8
	cfg.MIDIChannels = 16
	s := New(cfg)

	sf := buildTestFont()
	// Inject the prebuilt font directly, bypassing file/RIFF decoding --
	// this unit test exercises note-on resolution and rendering, not the
	// loader.
	s.fonts.fonts = append([]*loadedFont{{id: s.fonts.nextID, path: "test.sf2", font: sf}}, s.fonts.fonts...)
	s.fonts.nextID++
	return s
}

func TestNoteOnStartsVoiceAndNoteOffReleasesIt(t *testing.T) {
	s := newTestSynth(t)

	s.NoteOn(0, 60, 100)
	assert.Equal(t, 1, len(s.pool.Voices()), "a matching preset/instrument/zone chain should start exactly one voice")

	s.NoteOff(0, 60)
	assert.Equal(t, 1, len(s.pool.Voices()), "note-off releases, it does not immediately remove the voice")
}

func TestNoteOnWithoutPresetIsSilentlyDropped(t *testing.T) {
	cfg := settings.Default()
	s := New(cfg)

	s.NoteOn(0, 60, 100)
	assert.Empty(t, s.pool.Voices())
}

func TestNoteOnOutOfRangeChannelIsSilentlyDropped(t *testing.T) {
	s := newTestSynth(t)
	s.NoteOn(99, 60, 100)
	assert.Empty(t, s.pool.Voices())
}

func TestNoteOnZeroVelocityActsAsNoteOff(t *testing.T) {
	s := newTestSynth(t)
	s.NoteOn(0, 60, 100)
	assert.Equal(t, 1, len(s.pool.Voices()))

	// Render one frame so the envelope leaves its initial zero level before
	// release - otherwise noteOff's "already silent" short-circuit would
	// mask whether the event was actually routed to note-off.
	s.Process(make([]float32, 2))

	s.NoteOn(0, 60, 0)
	assert.Equal(t, voice.StateSustained, s.pool.Voices()[0].State(), "velocity 0 must release the sounding voice, not drop the event")
}

func TestNoteOnOutOfRangeVelocityIsSilentlyDropped(t *testing.T) {
	s := newTestSynth(t)
	s.NoteOn(0, 60, 200)
	assert.Empty(t, s.pool.Voices())
}

func TestProcessProducesFiniteAudio(t *testing.T) {
	s := newTestSynth(t)
	s.NoteOn(0, 60, 100)

	buf := make([]float32, 256)
	s.Process(buf)

	for i, v := range buf {
		assert.False(t, v != v, "sample %d is NaN", i) // v != v iff NaN
	}
	assert.Equal(t, uint64(128), s.Ticks(), "256 interleaved stereo samples is 128 frames")
}

func TestAllSoundsOffImmediatelyKillsVoices(t *testing.T) {
	s := newTestSynth(t)
	s.NoteOn(0, 60, 100)
	assert.NotEmpty(t, s.pool.Voices())

	s.AllSoundsOff(0)
	s.pool.Reap()
	assert.Empty(t, s.pool.Voices())
}

func TestSystemResetClearsVoicesAndControllers(t *testing.T) {
	s := newTestSynth(t)
	s.channels[0].PitchBend(1000)
	s.NoteOn(0, 60, 100)

	s.SystemReset()
	s.pool.Reap()

	assert.Empty(t, s.pool.Voices())
	assert.Equal(t, 8192, s.channels[0].Snapshot(60, 100).PitchWheel)
}

func TestBankOffsetShiftsPresetLookup(t *testing.T) {
	s := newTestSynth(t)
	id := s.fonts.fonts[0].id

	// With an offset of 5, the font's bank-0 preset is reachable by
	// requesting bank 5 (effective = 5 - 5 = 0); the unshifted bank 0 must
	// no longer resolve.
	ok := s.SetBankOffset(id, 5)
	assert.True(t, ok)

	s.BankSelect(0, 0)
	s.ProgramChange(0, 0)
	s.NoteOn(0, 60, 100)
	assert.Empty(t, s.pool.Voices(), "bank 0 no longer resolves once the font's offset shifts it to bank 5")

	s.BankSelect(0, 5)
	s.NoteOn(0, 60, 100)
	assert.NotEmpty(t, s.pool.Voices(), "bank 5 minus offset 5 resolves back to the font's bank 0 preset")
}
