package sf2synth

import (
	"github.com/oxisynth-go/sf2synth/internal/gen"
	"github.com/oxisynth-go/sf2synth/internal/modulator"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
	"github.com/oxisynth-go/sf2synth/internal/voice"
)

// maxVoicesPerNoteOn bounds a single noteon event's voice fan-out (stereo
// instruments typically spawn 2, layered patches a handful more); this is
// just a sane log-context cap, not an enforced limit.
const maxVoicesPerNoteOn = 32

// noteOn resolves (chan, key, vel) against the channel's current preset
// and starts one voice per matching instrument zone, layering generators
// and modulators exactly as sf_noteon does in the FluidSynth/OxiSynth
// lineage (spec.md §4.3):
//
//  1. walk preset zones whose key/vel range contains the note;
//  2. within each, walk the referenced instrument's zones whose range
//     contains the note and which carry a valid non-ROM sample;
//  3. layer instrument generators (local > global > default) onto a copy
//     of the generator defaults;
//  4. layer instrument modulators (global zone list, local zone
//     identity-replacing) onto the default modulator set, Overwrite
//     policy;
//  5. layer preset generators (local > global) by adding onto the
//     instrument-resolved value, skipping generators forbidden at preset
//     level;
//  6. layer preset modulators (global zone list, local zone
//     identity-replacing, zero-amount entries skipped) onto the voice's
//     modulator list, Add policy;
//  7. start the voice.
//
// A note-on with no current preset, or whose zones match nothing, starts
// zero voices and returns no error (spec.md §4.3, silent drop).
func (s *Synth) noteOn(ch int, key uint8, vel int) {
	if ch < 0 || ch >= len(s.channels) {
		return
	}
	c := s.channels[ch]
	preset := c.ResolvePreset(s.fonts)
	if preset == nil {
		return
	}

	s.noteID++
	noteID := s.noteID

	var started []*voice.Voice
	for _, presetZone := range preset.Zones {
		if !presetZone.InsideRange(key, vel) {
			continue
		}
		inst := presetZone.Inst
		if inst == nil {
			continue
		}
		for _, instZone := range inst.Zones {
			sample := instZone.Sample
			if sample == nil {
				continue
			}
			if !instZone.InsideRange(key, vel) {
				continue
			}

			v := s.startVoice(ch, key, vel, noteID, sample, preset.GlobalZone, presetZone, inst.GlobalZone, instZone)
			s.pool.Allocate(v, 0)
			started = append(started, v)
			if len(started) >= maxVoicesPerNoteOn {
				log.Debug("noteon voice fan-out capped", "channel", ch, "key", key, "cap", maxVoicesPerNoteOn)
				break
			}
		}
	}

	// Exclusive-class collision: kill all strictly-older voices of the
	// same class on this channel (spec.md §4.4). All voices from this
	// event share noteID, so "strictly older" excludes every voice this
	// call just started.
	for _, v := range started {
		if v.ExclusiveClass != 0 {
			s.pool.KillExclusiveClass(ch, v.ExclusiveClass, noteID)
		}
	}
}

func (s *Synth) startVoice(
	ch int, key uint8, vel int, noteID uint64,
	sample *soundfont.Sample,
	globalPresetZone, presetZone *soundfont.Zone,
	globalInstZone, instZone *soundfont.Zone,
) *voice.Voice {
	g := gen.Defaults()

	// Instrument level generators: local > global > default.
	for i := 0; i < int(gen.Last); i++ {
		if instZone.Gen[i].Flags == gen.Set {
			g[i] = instZone.Gen[i]
		} else if globalInstZone != nil && globalInstZone.Gen[i].Flags == gen.Set {
			g[i] = globalInstZone.Gen[i]
		}
	}

	// Instrument level modulators: global zone list, local zone entries
	// identity-replace, then each layered entry supersedes (Overwrite) the
	// default modulator set already present on the voice.
	var instGlobalMods []modulator.Mod
	if globalInstZone != nil {
		instGlobalMods = globalInstZone.Mods
	}
	instMerged := modulator.Layer(instGlobalMods, instZone.Mods)

	mods := modulator.DefaultSet()
	for _, m := range instMerged {
		mods = modulator.AddToVoice(mods, m, modulator.PolicyOverwrite)
	}

	// Preset level generators: local > global, added onto the
	// instrument-resolved value, skipping generators forbidden at preset
	// level (spec.md §4.3 step 5 / SF2.01 §8.5).
	for i := 0; i < int(gen.Last); i++ {
		idx := gen.Index(i)
		if gen.ForbiddenAtPresetLevel(idx) {
			continue
		}
		if presetZone.Gen[i].Flags == gen.Set {
			g[i].Val += presetZone.Gen[i].Val
			g[i].Flags = gen.Set
		} else if globalPresetZone != nil && globalPresetZone.Gen[i].Flags == gen.Set {
			g[i].Val += globalPresetZone.Gen[i].Val
			g[i].Flags = gen.Set
		}
	}

	// Preset level modulators: global zone list, local zone entries
	// identity-replace, zero-amount entries skipped, each layered entry
	// adds (Add policy) onto whatever is already on the voice.
	var presetGlobalMods []modulator.Mod
	if globalPresetZone != nil {
		presetGlobalMods = globalPresetZone.Mods
	}
	presetMerged := modulator.Layer(presetGlobalMods, presetZone.Mods)
	for _, m := range presetMerged {
		if m.Amount == 0 {
			continue
		}
		mods = modulator.AddToVoice(mods, m, modulator.PolicyAdd)
	}

	p := voice.Params{
		NoteID:        noteID,
		Channel:       ch,
		Key:           key,
		Velocity:      vel,
		Sample:        sample,
		Gen:           g,
		Mods:          mods,
		OutSampleRate: float64(s.settings.SampleRate),
		Interpolation: voice.InterpCubic4pt,
	}
	return voice.New(p, s.channels[ch].Snapshot(int(key), vel))
}
