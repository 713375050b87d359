// Package voicepool implements the synth's fixed-capacity voice pool:
// slot allocation, the three-tier kill policy for stealing a slot when the
// pool is full, and sample-rate invalidation (spec.md §4.6).
package voicepool

import (
	"github.com/oxisynth-go/sf2synth/internal/voice"
	"github.com/oxisynth-go/sf2synth/internal/xlog"
)

var log = xlog.For("voicepool")

// Pool holds up to Capacity concurrently-rendering voices. A nil slot is
// empty (equivalent to a voice in StateOff); a non-nil slot holds a voice
// in any lifecycle state.
type Pool struct {
	slots []*voice.Voice

	// minNoteLength is the settings.MinNoteLengthMS guarantee, converted to
	// samples at the current output rate. It guards only voice-stealing
	// (Allocate's three-tier policy); KillExclusiveClass stays unconditional
	// per spec.md §4.4.
	minNoteLength int
}

// New allocates an empty pool with the given capacity (settings.Polyphony).
func New(capacity int) *Pool {
	return &Pool{slots: make([]*voice.Voice, capacity)}
}

// SetMinNoteLength sets the minimum age (in samples) a voice must reach
// before voice-stealing may pick it as a victim. Zero disables the guard.
func (p *Pool) SetMinNoteLength(samples int) {
	p.minNoteLength = samples
}

// Capacity returns the pool's fixed slot count.
func (p *Pool) Capacity() int { return len(p.slots) }

// Voices returns the live (non-nil) voices currently occupying a slot, in
// slot order. Callers must not retain the returned slice across a call to
// Allocate or Reap.
func (p *Pool) Voices() []*voice.Voice {
	out := make([]*voice.Voice, 0, len(p.slots))
	for _, v := range p.slots {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Reap drops every slot whose voice has finished rendering, returning them
// to Off/empty. Callers should run this once per block before Allocate.
func (p *Pool) Reap() {
	for i, v := range p.slots {
		if v != nil && v.Finished() {
			p.slots[i] = nil
		}
	}
}

// channelVoiceCount counts live voices belonging to ch, for the §4.6 tier-2
// "channel at maximum polyphony" test. maxPerChannel <= 0 disables the
// per-channel cap (the test is then never satisfied and tier 2 is skipped).
func (p *Pool) channelVoiceCount(ch int) int {
	n := 0
	for _, v := range p.slots {
		if v != nil && v.Channel == ch {
			n++
		}
	}
	return n
}

// Allocate places nv into an empty slot if one is free. If the pool is
// full, it applies the three-tier kill policy (spec.md §4.6):
//  1. prefer voices in Sustained with lowest envelope amplitude;
//  2. then voices in On with lowest amplitude belonging to a channel at
//     maxPerChannel capacity;
//  3. then the globally lowest-amplitude voice.
// Ties are broken by oldest NoteID. maxPerChannel <= 0 disables tier 2. Each
// tier first excludes voices younger than SetMinNoteLength's guard; if that
// leaves no candidate anywhere, the policy runs again without the guard.
func (p *Pool) Allocate(nv *voice.Voice, maxPerChannel int) {
	for i, v := range p.slots {
		if v == nil {
			p.slots[i] = nv
			return
		}
	}

	victim := p.selectVictim(maxPerChannel)
	if victim < 0 {
		log.Warn("voice pool full, no eviction candidate found", "capacity", len(p.slots))
		return
	}
	old := p.slots[victim]
	log.Debug("stealing voice slot", "slot", victim, "killed_noteid", old.NoteID, "new_noteid", nv.NoteID)
	old.Off()
	p.slots[victim] = nv
}

// selectVictim runs the three-tier policy twice: first honoring the
// minimum-note-length guard (skipping voices younger than minNoteLength),
// then, only if that finds nothing at all, retrying with the guard lifted
// so a full pool can never refuse to allocate a new voice.
func (p *Pool) selectVictim(maxPerChannel int) int {
	if idx := p.selectVictimPass(maxPerChannel, true); idx >= 0 {
		return idx
	}
	return p.selectVictimPass(maxPerChannel, false)
}

func (p *Pool) selectVictimPass(maxPerChannel int, enforceMinAge bool) int {
	if idx := p.lowestAmplitudeInState(voice.StateSustained, -1, enforceMinAge); idx >= 0 {
		return idx
	}
	if maxPerChannel > 0 {
		if idx := p.lowestAmplitudeAtChannelCap(maxPerChannel, enforceMinAge); idx >= 0 {
			return idx
		}
	}
	return p.lowestAmplitudeInState(voice.StateOn, voice.StateSustained, enforceMinAge)
}

func (p *Pool) tooYoung(v *voice.Voice, enforce bool) bool {
	return enforce && p.minNoteLength > 0 && v.Age() < p.minNoteLength
}

// lowestAmplitudeInState returns the slot index of the lowest-amplitude
// voice whose state is want, or also alsoWant when >= 0 (used to widen
// StateOn to "On or Sustained" for the final global tier). Ties broken by
// oldest (smallest) NoteID.
func (p *Pool) lowestAmplitudeInState(want, alsoWant voice.State, enforceMinAge bool) int {
	best := -1
	bestAmp := 0.0
	var bestNoteID uint64
	for i, v := range p.slots {
		if v == nil {
			continue
		}
		st := v.State()
		if st != want && st != alsoWant {
			continue
		}
		if p.tooYoung(v, enforceMinAge) {
			continue
		}
		amp := v.Amplitude()
		if best < 0 || amp < bestAmp || (amp == bestAmp && v.NoteID < bestNoteID) {
			best = i
			bestAmp = amp
			bestNoteID = v.NoteID
		}
	}
	return best
}

func (p *Pool) lowestAmplitudeAtChannelCap(maxPerChannel int, enforceMinAge bool) int {
	best := -1
	bestAmp := 0.0
	var bestNoteID uint64
	for i, v := range p.slots {
		if v == nil || v.State() != voice.StateOn {
			continue
		}
		if p.channelVoiceCount(v.Channel) < maxPerChannel {
			continue
		}
		if p.tooYoung(v, enforceMinAge) {
			continue
		}
		amp := v.Amplitude()
		if best < 0 || amp < bestAmp || (amp == bestAmp && v.NoteID < bestNoteID) {
			best = i
			bestAmp = amp
			bestNoteID = v.NoteID
		}
	}
	return best
}

// KillExclusiveClass immediately silences every voice on channel ch sharing
// exclusiveClass that was started strictly before newNoteID (spec.md §4.4:
// "immediately kills all voices of the same class on the same channel
// whose noteid is strictly older").
func (p *Pool) KillExclusiveClass(ch, exclusiveClass int, newNoteID uint64) {
	if exclusiveClass == 0 {
		return
	}
	for _, v := range p.slots {
		if v == nil || v.Finished() {
			continue
		}
		if v.Channel == ch && v.ExclusiveClass == exclusiveClass && v.NoteID < newNoteID {
			v.Off()
		}
	}
}

// AllOff immediately silences every voice in the pool (system reset).
func (p *Pool) AllOff() {
	for _, v := range p.slots {
		if v != nil {
			v.Off()
		}
	}
}

// ChannelOff immediately silences every voice belonging to ch (all sounds
// off on a single channel).
func (p *Pool) ChannelOff(ch int) {
	for _, v := range p.slots {
		if v != nil && v.Channel == ch {
			v.Off()
		}
	}
}

// ChannelNoteOff releases (note-off, not kill) every sounding voice
// belonging to ch and key (all voices layered from a single noteon share
// key but may differ in NoteID across retriggers).
func (p *Pool) ChannelNoteOff(ch int, key uint8) {
	for _, v := range p.slots {
		if v != nil && v.Channel == ch && v.Key == key && v.State() == voice.StateOn {
			v.NoteOff()
		}
	}
}

// ChannelAllNotesOff releases (note-off, not kill) every sounding voice on
// ch, leaving release tails to finish naturally.
func (p *Pool) ChannelAllNotesOff(ch int) {
	for _, v := range p.slots {
		if v != nil && v.Channel == ch && v.State() == voice.StateOn {
			v.NoteOff()
		}
	}
}

// SetOutputSampleRate propagates a sample-rate change to every live voice,
// invalidating rate-derived caches (spec.md §4.6).
func (p *Pool) SetOutputSampleRate(sr float64) {
	for _, v := range p.slots {
		if v != nil {
			v.SetOutputSampleRate(sr)
		}
	}
}
