// Package settings holds the Synth's construction-time configuration.
package settings

import "github.com/oxisynth-go/sf2synth/internal/xlog"

var log = xlog.For("settings")

// Settings collects the recognized construction options (spec.md §6), each
// with a documented range and default matching FluidSynth-lineage defaults.
type Settings struct {
	// Polyphony is the voice pool capacity. Range 16-4096, default 256.
	Polyphony int
	// MIDIChannels must be a multiple of 16. Range 16-256, default 16.
	MIDIChannels int
	// Gain is the master output gain. Range 0.0-10.0, default 0.2.
	Gain float64
	// AudioChannels is the number of discrete stereo output buffers.
	// Range 1-128, default 1. The value is validated only; the renderer
	// always mixes into a single stereo output.
	AudioChannels int
	// AudioGroups is the number of voice-routing groups. Range 1-128,
	// default 1. The value is validated only; voices are not routed by group.
	AudioGroups int
	// SampleRate is the internal render rate in Hz. Range 22050-96000,
	// default 44100.
	SampleRate int
	// MinNoteLengthMS is the minimum duration (ms) a voice sounds before the
	// pool prefers it as a steal victim; when every voice is younger the
	// guard is lifted. Exclusive-class kills ignore it. Range 0-65535,
	// default 10.
	MinNoteLengthMS int
	// ReverbActive enables the reverb send/return path. Default true.
	ReverbActive bool
	// ChorusActive enables the chorus send/return path. Default true.
	ChorusActive bool
	// DrumsChannelActive bank-selects channel 9 to bank 128 (GM drums) on
	// construction. Default true.
	DrumsChannelActive bool
}

// Default returns the documented defaults.
func Default() Settings {
	return Settings{
		Polyphony:          256,
		MIDIChannels:       16,
		Gain:               0.2,
		AudioChannels:      1,
		AudioGroups:        1,
		SampleRate:         44100,
		MinNoteLengthMS:    10,
		ReverbActive:       true,
		ChorusActive:       true,
		DrumsChannelActive: true,
	}
}

// Validate clamps out-of-range values to their documented bounds, rounds
// MIDIChannels up to the next multiple of 16, and logs a warning for every
// adjustment it makes. It never returns an error — settings are always
// coercible to a valid configuration.
func (s *Settings) Validate() {
	if s.Polyphony < 16 {
		log.Warn("polyphony below minimum, clamping", "requested", s.Polyphony, "min", 16)
		s.Polyphony = 16
	} else if s.Polyphony > 4096 {
		log.Warn("polyphony above maximum, clamping", "requested", s.Polyphony, "max", 4096)
		s.Polyphony = 4096
	}

	if s.MIDIChannels < 16 {
		log.Warn("midi channel count below minimum, clamping", "requested", s.MIDIChannels, "min", 16)
		s.MIDIChannels = 16
	}
	if s.MIDIChannels%16 != 0 {
		n := s.MIDIChannels / 16
		rounded := (n + 1) * 16
		log.Warn("midi channel count is not a multiple of 16, rounding up", "requested", s.MIDIChannels, "rounded", rounded)
		s.MIDIChannels = rounded
	}
	if s.MIDIChannels > 256 {
		log.Warn("midi channel count above maximum, clamping", "requested", s.MIDIChannels, "max", 256)
		s.MIDIChannels = 256
	}

	if s.Gain < 0 {
		log.Warn("gain below minimum, clamping", "requested", s.Gain, "min", 0)
		s.Gain = 0
	} else if s.Gain > 10 {
		log.Warn("gain above maximum, clamping", "requested", s.Gain, "max", 10)
		s.Gain = 10
	}

	if s.AudioChannels < 1 {
		log.Warn("audio channel count below minimum, clamping", "requested", s.AudioChannels)
		s.AudioChannels = 1
	} else if s.AudioChannels > 128 {
		log.Warn("audio channel count above maximum, clamping", "requested", s.AudioChannels)
		s.AudioChannels = 128
	}

	if s.AudioGroups < 1 {
		log.Warn("audio group count below minimum, clamping", "requested", s.AudioGroups)
		s.AudioGroups = 1
	} else if s.AudioGroups > 128 {
		log.Warn("audio group count above maximum, clamping", "requested", s.AudioGroups)
		s.AudioGroups = 128
	}

	if s.SampleRate < 22050 {
		log.Warn("sample rate below minimum, clamping", "requested", s.SampleRate, "min", 22050)
		s.SampleRate = 22050
	} else if s.SampleRate > 96000 {
		log.Warn("sample rate above maximum, clamping", "requested", s.SampleRate, "max", 96000)
		s.SampleRate = 96000
	}

	if s.MinNoteLengthMS < 0 {
		log.Warn("min note length below minimum, clamping", "requested", s.MinNoteLengthMS, "min", 0)
		s.MinNoteLengthMS = 0
	} else if s.MinNoteLengthMS > 65535 {
		log.Warn("min note length above maximum, clamping", "requested", s.MinNoteLengthMS, "max", 65535)
		s.MinNoteLengthMS = 65535
	}
}
