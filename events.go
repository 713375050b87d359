package sf2synth

// MIDI-style event API (spec.md §6): noteon/noteoff/cc/program_change/
// bank_select/pitch_bend/channel_pressure/key_pressure/all_notes_off/
// all_sounds_off/system_reset. Every handler treats an out-of-range
// channel, missing preset, or similar misuse as a silent drop rather than
// an error — the render path must never fail or block (spec.md §7).

func (s *Synth) channelAt(ch int) (int, bool) {
	if ch < 0 || ch >= len(s.channels) {
		return 0, false
	}
	return ch, true
}

// NoteOn starts zero or more voices for (channel, key, velocity). key must
// be 0-127; a velocity of 0 is treated as note-off (spec.md §8: "noteon
// with velocity = 0 behaves as noteoff"), matching the FluidSynth/OxiSynth
// lineage. Any other out-of-range value is silently dropped.
func (s *Synth) NoteOn(ch int, key, velocity uint8) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	if key > 127 || velocity > 127 {
		log.Debug("noteon dropped: out of range", "channel", ch, "key", key, "velocity", velocity)
		return
	}
	if velocity == 0 {
		s.pool.ChannelNoteOff(ch, key)
		return
	}
	s.noteOn(ch, key, int(velocity))
}

// NoteOff releases every sounding voice on (channel, key), moving it into
// its release envelope stage; rendering continues until silent.
func (s *Synth) NoteOff(ch int, key uint8) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.pool.ChannelNoteOff(ch, key)
}

// CC sets continuous controller ctrl (0-127) to value (0-127) on channel.
func (s *Synth) CC(ch, ctrl, value int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].CC(ctrl, value)
}

// ProgramChange selects a new program on channel; the channel's cached
// preset is re-resolved on the next note-on.
func (s *Synth) ProgramChange(ch, program int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].ProgramChange(program)
}

// BankSelect selects a new bank on channel.
func (s *Synth) BankSelect(ch, bank int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].BankSelect(bank)
}

// PitchBend sets the 14-bit pitch wheel position (0-16383, 8192 = center)
// on channel.
func (s *Synth) PitchBend(ch, value int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].PitchBend(value)
}

// ChannelPressure sets monophonic (channel) aftertouch on channel.
func (s *Synth) ChannelPressure(ch, value int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].ChannelPressure(value)
}

// KeyPressure sets polyphonic aftertouch for a single key on channel.
func (s *Synth) KeyPressure(ch int, key uint8, value int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.channels[ch].KeyPressure(int(key), value)
}

// AllNotesOff releases every sounding voice on channel (note-off, not
// kill): release tails continue until silent.
func (s *Synth) AllNotesOff(ch int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.pool.ChannelAllNotesOff(ch)
}

// AllSoundsOff immediately silences every voice on channel, skipping
// release tails.
func (s *Synth) AllSoundsOff(ch int) {
	if _, ok := s.channelAt(ch); !ok {
		return
	}
	s.pool.ChannelOff(ch)
}

// SystemReset immediately silences every voice on every channel and
// resets all channel controllers to their power-on defaults.
func (s *Synth) SystemReset() {
	s.pool.AllOff()
	for _, c := range s.channels {
		c.ResetControllers()
	}
}
