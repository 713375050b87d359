// Package channel implements MIDI channel state: bank/program selection,
// on-demand preset resolution (no preset is cached), controller values, pitch
// bend, and per-key pressure, feeding the voice.Controllers snapshot a
// note-on or render block needs (spec.md §3, §4.7).
package channel

import (
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
	"github.com/oxisynth-go/sf2synth/internal/voice"
)

// PresetResolver looks up the preset a channel should use for its current
// (sfontID, bank, program) selection. Implemented by the synth's font
// stack (spec.md §4.7: "find_preset walks top-to-bottom, first hit wins").
// The reference a Channel holds is weak in the sense that it is never
// cached across an Unload: ResolvePreset re-walks the stack on demand.
type PresetResolver interface {
	FindPreset(bank, program int) *soundfont.Preset
}

// Channel is one MIDI channel's addressable state.
type Channel struct {
	Index int

	sfontID int
	bank    int
	program int

	pitchBend            int // 0-16383, 8192 = center
	pitchBendSensitivity int // semitones
	channelPressure      int
	keyPressure          [128]int
	cc                   [128]int

	// isDrum marks a channel fixed to bank 128 per the General MIDI
	// percussion convention, gated by settings.DrumsChannelActive.
	isDrum bool
}

// New returns a channel at its power-on defaults: bank 0 program 0, pitch
// wheel centered, pitch bend sensitivity 2 semitones, all CCs zero except
// the volume/expression/pan defaults MIDI implementations assume.
func New(index int) *Channel {
	c := &Channel{
		Index:                index,
		pitchBend:            8192,
		pitchBendSensitivity: 2,
	}
	c.cc[7] = 100  // channel volume
	c.cc[10] = 64  // pan, center
	c.cc[11] = 127 // expression, full
	return c
}

// SetDrum marks or clears this channel as the percussion channel; while set,
// Bank (and so ResolvePreset) reports bank 128 whatever BankSelect stored.
func (c *Channel) SetDrum(v bool) { c.isDrum = v }

// IsDrum reports whether this channel is configured as the drum channel.
func (c *Channel) IsDrum() bool { return c.isDrum }

// SelectSoundFont pins this channel's lookups to a specific font id
// instead of stack-searching (sfont_select in the original API); 0 means
// "search the whole stack" (the default).
func (c *Channel) SelectSoundFont(id int) { c.sfontID = id }

// SoundFontID returns the pinned font id, or 0 if unpinned.
func (c *Channel) SoundFontID() int { return c.sfontID }

// BankSelect sets the channel's current bank (MSB CC0 equivalent in this
// API surface — spec.md models bank_select as a single call, not split
// MSB/LSB).
func (c *Channel) BankSelect(bank int) {
	c.bank = bank
}

// ProgramChange sets the channel's current program number.
func (c *Channel) ProgramChange(program int) {
	c.program = program
}

// Bank returns the channel's current bank selection.
func (c *Channel) Bank() int {
	if c.isDrum {
		return 128
	}
	return c.bank
}

// Program returns the channel's current program selection.
func (c *Channel) Program() int { return c.program }

// ResolvePreset re-walks the font stack for this channel's current
// (bank, program); returns nil if nothing matches (channel is left
// unprogrammed, spec.md §4.7).
func (c *Channel) ResolvePreset(r PresetResolver) *soundfont.Preset {
	return r.FindPreset(c.Bank(), c.Program())
}

// CC sets continuous controller number ctrl (0-127) to value (0-127).
// Out-of-range controller numbers are silently ignored (spec.md §6: MIDI
// event handlers treat misuse as silent drops).
func (c *Channel) CC(ctrl, value int) {
	if ctrl < 0 || ctrl > 127 {
		return
	}
	c.cc[ctrl] = value
}

// CCValue returns the current value of continuous controller ctrl.
func (c *Channel) CCValue(ctrl int) int {
	if ctrl < 0 || ctrl > 127 {
		return 0
	}
	return c.cc[ctrl]
}

// PitchBend sets the 14-bit pitch wheel position (0-16383, 8192 = center).
func (c *Channel) PitchBend(value int) { c.pitchBend = value }

// PitchBendSensitivity sets the RPN0-equivalent pitch bend range in
// semitones.
func (c *Channel) PitchBendSensitivity(semitones int) { c.pitchBendSensitivity = semitones }

// ChannelPressure sets the channel (monophonic) aftertouch value.
func (c *Channel) ChannelPressure(value int) { c.channelPressure = value }

// KeyPressure sets polyphonic aftertouch for a single key.
func (c *Channel) KeyPressure(key, value int) {
	if key < 0 || key > 127 {
		return
	}
	c.keyPressure[key] = value
}

// ResetControllers resets MIDI performance controllers (expression to full,
// pitch bend centered, channel and key pressure cleared), leaving
// bank/program and all other CCs, sustain included, untouched. Voice release
// is the pool's responsibility, not the channel's.
func (c *Channel) ResetControllers() {
	c.pitchBend = 8192
	c.cc[11] = 127
	for k := range c.keyPressure {
		c.keyPressure[k] = 0
	}
	c.channelPressure = 0
}

// Snapshot builds the voice.Controllers a new voice (or an already-running
// one) should read this block, for the given key and the velocity fixed at
// that key's note-on.
func (c *Channel) Snapshot(key, velocity int) voice.Controllers {
	return voice.Controllers{
		Velocity:              velocity,
		Key:                   key,
		PolyPressure:          c.keyPressure[key],
		ChannelPressure:       c.channelPressure,
		PitchWheel:            c.pitchBend,
		PitchWheelSensitivity: c.pitchBendSensitivity,
		CC:                    c.cc,
	}
}
