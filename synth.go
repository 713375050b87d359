// Package sf2synth renders polyphonic audio from MIDI-style events by
// mixing PCM samples from one or more SF2 SoundFont banks (spec.md §1).
package sf2synth

import (
	"github.com/oxisynth-go/sf2synth/internal/channel"
	"github.com/oxisynth-go/sf2synth/internal/effects"
	"github.com/oxisynth-go/sf2synth/internal/settings"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
	"github.com/oxisynth-go/sf2synth/internal/voicepool"
	"github.com/oxisynth-go/sf2synth/internal/xlog"
)

var log = xlog.For("synth")

// blockSize is B from spec.md §4.5: the renderer's fixed internal block
// granularity. Callers may request arbitrary sample counts from Process;
// the synth buffers partial blocks across calls.
const blockSize = 64

// Synth is the top-level engine: a font stack, a bank of MIDI channels, a
// fixed-capacity voice pool, and the two effect-send accumulators
// (spec.md §2, §4.5, §4.7).
type Synth struct {
	settings settings.Settings

	fonts    *fontStack
	channels []*channel.Channel
	pool     *voicepool.Pool

	reverb *effects.Reverb
	chorus *effects.Chorus

	noteID uint64
	ticks  uint64

	// accumulators for one blockSize-frame render pass.
	accL, accR     []float64
	sendRev, sendCho []float64

	// pending holds interleaved stereo float32 frames rendered ahead of
	// the last Process/WriteFloat call, for the §4.5 "cur cursor" partial
	// block consumption contract.
	pending []float32
	cur     int

	// ditherL/ditherR are independent LCG states for WriteS16's dither.
	ditherL, ditherR uint32
}

// New constructs a Synth from settings, clamping/rounding out-of-range
// values per Settings.Validate. Channel 9 (0-indexed) is bank-selected to
// 128 when DrumsChannelActive is set, matching
// unoxidized/src/synth.rs::Synth::new (SPEC_FULL §D).
func New(cfg settings.Settings) *Synth {
	cfg.Validate()

	s := &Synth{
		settings: cfg,
		fonts:    newFontStack(),
		pool:     voicepool.New(cfg.Polyphony),
		accL:     make([]float64, blockSize),
		accR:     make([]float64, blockSize),
		sendRev:  make([]float64, blockSize),
		sendCho:  make([]float64, blockSize),
	}

	s.channels = make([]*channel.Channel, cfg.MIDIChannels)
	for i := range s.channels {
		s.channels[i] = channel.New(i)
	}
	if cfg.DrumsChannelActive && len(s.channels) > 9 {
		s.channels[9].SetDrum(true)
	}

	if cfg.ReverbActive {
		s.reverb = effects.NewReverb(cfg.SampleRate, 0.5, 0.6, 0.3)
	}
	if cfg.ChorusActive {
		s.chorus = effects.NewChorus(cfg.SampleRate, 15, 0.3, 3, 0.3, 0.4)
	}

	s.pool.SetMinNoteLength(cfg.MinNoteLengthMS * cfg.SampleRate / 1000)

	return s
}

// Settings returns a copy of the synth's current (already-validated)
// configuration.
func (s *Synth) Settings() settings.Settings { return s.settings }

// SFLoad loads an SF2 file and pushes it onto the top of the font stack,
// then re-resolves every channel's cached preset (SPEC_FULL §D
// update_presets extension). Matches Synth::sfload in the original.
func (s *Synth) SFLoad(path string) (FontID, error) {
	id, err := s.fonts.Load(path)
	if err != nil {
		log.Error("sfload failed", "path", path, "err", err)
		return 0, err
	}
	s.updatePresets()
	log.Info("soundfont loaded", "path", path, "id", id)
	return id, nil
}

// SFReload re-reads a previously loaded font's file, keeping its id and
// stack position, then re-resolves every channel's cached preset.
func (s *Synth) SFReload(id FontID) error {
	if err := s.fonts.Reload(id); err != nil {
		return err
	}
	s.updatePresets()
	return nil
}

// SFUnload removes a font from the stack and re-resolves every channel's
// cached preset; channels pointing at the removed font's presets fall
// back to None until reprogrammed (spec.md §4.7).
func (s *Synth) SFUnload(id FontID) bool {
	ok := s.fonts.Unload(id)
	if ok {
		s.updatePresets()
	}
	return ok
}

// SFCount returns the number of currently loaded SoundFonts.
func (s *Synth) SFCount() int { return s.fonts.Count() }

// GetSFont returns the SoundFont at stack position num (0 = top), or nil.
func (s *Synth) GetSFont(num int) *soundfont.SoundFont {
	lf := s.fonts.ByIndex(num)
	if lf == nil {
		return nil
	}
	return lf.font
}

// GetSFontByID returns the SoundFont with the given id, or nil.
func (s *Synth) GetSFontByID(id FontID) *soundfont.SoundFont {
	lf := s.fonts.byID(id)
	if lf == nil {
		return nil
	}
	return lf.font
}

// SetBankOffset sets the bank offset subtracted from requested banks
// before lookup in font id, then re-resolves every channel's cached
// preset (SPEC_FULL §D extends this to every stack mutation).
func (s *Synth) SetBankOffset(id FontID, offset uint32) bool {
	ok := s.fonts.SetBankOffset(id, offset)
	if ok {
		s.updatePresets()
	}
	return ok
}

// GetBankOffset returns the current bank offset for font id.
func (s *Synth) GetBankOffset(id FontID) (uint32, bool) {
	return s.fonts.BankOffset(id)
}

// updatePresets re-resolves every channel's current preset against the
// font stack (unoxidized/src/synth.rs::update_presets). Because
// channel.ResolvePreset always re-walks the stack rather than reading a
// cached pointer, this is a no-op placeholder kept for parity with the
// original's call sites and as the hook future caching would attach to.
func (s *Synth) updatePresets() {}

// SetSampleRate changes the internal render rate, invalidating every
// voice's rate-derived caches and reinitializing the chorus line (spec.md
// §4.6).
func (s *Synth) SetSampleRate(hz int) {
	s.settings.SampleRate = hz
	s.pool.SetOutputSampleRate(float64(hz))
	s.pool.SetMinNoteLength(s.settings.MinNoteLengthMS * hz / 1000)
	if s.chorus != nil {
		s.chorus = effects.NewChorus(hz, 15, 0.3, 3, 0.3, 0.4)
	}
	if s.reverb != nil {
		s.reverb.Reset()
	}
}
