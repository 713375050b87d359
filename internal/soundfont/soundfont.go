// Package soundfont turns the raw RIFF records decoded by internal/sfdata
// into the preset/instrument/zone/sample object graph, with global-zone
// inheritance resolved, ready for note-on resolution (spec.md §4.3). The
// zone layering here mirrors DefaultSoundFont::load / DefaultPreset and
// Instrument::import_sfont in a FluidSynth-lineage loader: local zone
// generators and modulators are kept distinct from a single global zone
// (zone index 0 with no instrument/sample link) per voice.
package soundfont

import (
	"io"
	"sort"

	"github.com/oxisynth-go/sf2synth/internal/gen"
	"github.com/oxisynth-go/sf2synth/internal/modulator"
	"github.com/oxisynth-go/sf2synth/internal/sfdata"
	"github.com/oxisynth-go/sf2synth/internal/sferr"
	"github.com/oxisynth-go/sf2synth/internal/xlog"
)

var log = xlog.For("soundfont")

// Sample is one playable PCM waveform: a view into the bank's shared sample
// pool plus loop points and pitch metadata.
type Sample struct {
	Name            string
	Data            []int16 // view into the loaded smpl pool (sfdata.Raw.SampleData[Start:End])
	LoopStart       uint32  // relative to Data[0]
	LoopEnd         uint32  // relative to Data[0]
	SampleRate      uint32
	OriginalPitch   uint8
	PitchCorrection int8
	LinkType        sfdata.SampleLinkType
	LinkedSample    *Sample // the paired channel for stereo samples, if any
	// PeakAmplitude is the maximum |s| over Data, used by the voice engine
	// as a cheap early-silence hint (spec.md §4.4, loop/off transitions).
	PeakAmplitude int16
}

// Zone is one key/velocity-gated layer of generators and modulators, shared
// shape for both preset zones and instrument zones.
type Zone struct {
	KeyLo, KeyHi uint8
	VelLo, VelHi int
	Gen          gen.Array
	Mods         []modulator.Mod

	// At most one of Inst (preset zone) or Sample (instrument zone) is set;
	// both are nil on a global zone and on a link-less zone past index 0,
	// which is kept but never matches a note-on.
	Inst   *Instrument
	Sample *Sample
}

// InsideRange reports whether key/velocity fall within the zone's range,
// matching preset_zone_inside_range / inst_zone_inside_range.
func (z *Zone) InsideRange(key uint8, vel int) bool {
	return z.KeyLo <= key && key <= z.KeyHi && z.VelLo <= vel && vel <= z.VelHi
}

// Instrument is one `inst` record's resolved zone list.
type Instrument struct {
	Name       string
	GlobalZone *Zone
	Zones      []*Zone
}

// Preset is one `phdr` record's resolved zone list.
type Preset struct {
	Name       string
	Bank       int
	Num        int
	GlobalZone *Zone
	Zones      []*Zone
}

// SoundFont is a fully resolved SF2 bank.
type SoundFont struct {
	Name    string
	Samples []*Sample
	Presets []*Preset
}

// FindPreset returns the preset matching (bank, program) in this font, or
// nil. Presets is small enough in practice for a linear scan; Load keeps
// it sorted by (Bank, Num) for deterministic iteration, not for search.
func (sf *SoundFont) FindPreset(bank, program int) *Preset {
	for _, p := range sf.Presets {
		if p.Bank == bank && p.Num == program {
			return p
		}
	}
	return nil
}

// Load decodes and resolves a complete SF2 bank from r.
func Load(r io.Reader) (*SoundFont, error) {
	raw, err := sfdata.Decode(r)
	if err != nil {
		return nil, err
	}

	sf := &SoundFont{Name: raw.Info.Name}

	samples, err := buildSamples(raw)
	if err != nil {
		return nil, err
	}
	sf.Samples = samples

	byName := make(map[string]*Sample, len(samples))
	for _, s := range samples {
		byName[s.Name] = s
	}

	instruments, err := buildInstruments(raw, byName)
	if err != nil {
		return nil, err
	}

	presets, err := buildPresets(raw, instruments)
	if err != nil {
		return nil, err
	}
	sf.Presets = presets

	sort.Slice(sf.Presets, func(i, j int) bool {
		a, b := sf.Presets[i], sf.Presets[j]
		if a.Bank != b.Bank {
			return a.Bank < b.Bank
		}
		return a.Num < b.Num
	})

	return sf, nil
}

func buildSamples(raw *sfdata.Raw) ([]*Sample, error) {
	hdrs := raw.Hydra.Samples
	if len(hdrs) < 1 {
		return nil, sferr.New(sferr.FormatInvariant, "shdr contains no sample headers")
	}
	// The final shdr record is a required terminal sentinel, not a sample.
	n := len(hdrs) - 1

	out := make([]*Sample, 0, n)
	byName := make(map[string]*Sample, n)

	for i := 0; i < n; i++ {
		h := hdrs[i]
		if sfdata.SampleLinkType(h.SampleType).IsROM() {
			log.Debug("skipping ROM sample, no ROM wavetable available", "name", sfdata.NameString(h.Name))
			out = append(out, nil)
			continue
		}
		if h.End < h.Start || int(h.End) > len(raw.SampleData) {
			return nil, sferr.New(sferr.FormatInvariant, "sample %q has out-of-range data bounds", sfdata.NameString(h.Name))
		}

		s := &Sample{
			Name:            sfdata.NameString(h.Name),
			Data:            raw.SampleData[h.Start:h.End],
			SampleRate:      h.SampleRate,
			OriginalPitch:   h.OriginalPitch,
			PitchCorrection: h.PitchCorrection,
			LinkType:        sfdata.SampleLinkType(h.SampleType),
		}
		if h.OriginalPitch > 127 {
			s.OriginalPitch = 60
		}
		if h.StartLoop >= h.Start && h.StartLoop <= h.End {
			s.LoopStart = h.StartLoop - h.Start
		}
		if h.EndLoop >= h.Start && h.EndLoop <= h.End {
			s.LoopEnd = h.EndLoop - h.Start
		}
		optimizeSample(s)

		out = append(out, s)
		byName[s.Name] = s
	}

	// Pair stereo samples by their sfSampleLink index (sample_link), the
	// same two-pass approach soundfont-rs's loader uses: samples must all
	// exist before links can be resolved.
	for i := 0; i < n; i++ {
		if out[i] == nil {
			continue
		}
		h := hdrs[i]
		if h.SampleType == sfdata.SampleLeft || h.SampleType == sfdata.SampleRight {
			if int(h.SampleLink) < n && out[h.SampleLink] != nil {
				out[i].LinkedSample = out[h.SampleLink]
			}
		}
	}

	return out, nil
}

// optimizeSample computes the peak-amplitude hint the voice engine uses to
// recognize an effectively-silent loop without scanning the waveform every
// block (mirrors Sample::optimize_sample's amplitude-envelope scan).
func optimizeSample(s *Sample) {
	var peak int16
	for _, v := range s.Data {
		a := v
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	s.PeakAmplitude = peak
}

func buildInstruments(raw *sfdata.Raw, samplesByName map[string]*Sample) ([]*Instrument, error) {
	hdrs := raw.Hydra.Instruments
	if len(hdrs) < 1 {
		return nil, sferr.New(sferr.FormatInvariant, "inst contains no instrument headers")
	}
	n := len(hdrs) - 1
	shdrs := raw.Hydra.Samples

	out := make([]*Instrument, 0, n)
	for i := 0; i < n; i++ {
		h := hdrs[i]
		inst := &Instrument{Name: sfdata.NameString(h.Name)}
		if inst.Name == "" {
			inst.Name = "<untitled>"
		}

		bagLo, bagHi := h.InstBagNdx, hdrs[i+1].InstBagNdx
		zoneID := 0
		for bagIdx := bagLo; bagIdx < bagHi; bagIdx++ {
			zone, err := buildZone(raw.Hydra.InstrumentBags, raw.Hydra.InstrumentGens, raw.Hydra.InstrumentMods, int(bagIdx), false)
			if err != nil {
				return nil, err
			}
			if sampleIdx, ok := zone.linkValue, zone.haveLink; ok {
				if sampleIdx >= len(shdrs)-1 {
					return nil, sferr.New(sferr.FormatInvariant, "instrument %q zone references out-of-range sample id %d", inst.Name, sampleIdx)
				}
				if sfdata.SampleLinkType(shdrs[sampleIdx].SampleType).IsROM() {
					// A ROM-only sample has no wavetable to render; spec.md
					// §4.3 says the zone is simply skipped, not the whole
					// font load failed.
					log.Debug("skipping instrument zone referencing ROM sample", "instrument", inst.Name, "name", sfdata.NameString(shdrs[sampleIdx].Name))
					zoneID++
					continue
				}
				name := sfdata.NameString(shdrs[sampleIdx].Name)
				sample, ok := samplesByName[name]
				if !ok {
					return nil, sferr.New(sferr.FormatInvariant, "instrument %q references unknown sample %q", inst.Name, name)
				}
				zone.z.Sample = sample
			}

			if zoneID == 0 && zone.z.Sample == nil {
				inst.GlobalZone = zone.z
			} else {
				inst.Zones = append(inst.Zones, zone.z)
			}
			zoneID++
		}

		out = append(out, inst)
	}
	return out, nil
}

func buildPresets(raw *sfdata.Raw, instruments []*Instrument) ([]*Preset, error) {
	hdrs := raw.Hydra.Presets
	if len(hdrs) < 1 {
		return nil, sferr.New(sferr.FormatInvariant, "phdr contains no preset headers")
	}
	n := len(hdrs) - 1

	out := make([]*Preset, 0, n)
	for i := 0; i < n; i++ {
		h := hdrs[i]
		name := sfdata.NameString(h.Name)
		p := &Preset{
			Name: name,
			Bank: int(h.Bank),
			Num:  int(h.Preset),
		}
		if p.Name == "" {
			p.Name = presetFallbackName(p.Bank, p.Num)
		}

		bagLo, bagHi := h.PresetBagNdx, hdrs[i+1].PresetBagNdx
		zoneID := 0
		for bagIdx := bagLo; bagIdx < bagHi; bagIdx++ {
			zone, err := buildZone(raw.Hydra.PresetBags, raw.Hydra.PresetGens, raw.Hydra.PresetMods, int(bagIdx), true)
			if err != nil {
				return nil, err
			}
			if instIdx, ok := zone.linkValue, zone.haveLink; ok {
				if instIdx >= len(instruments) {
					return nil, sferr.New(sferr.FormatInvariant, "preset %q zone references out-of-range instrument id %d", p.Name, instIdx)
				}
				zone.z.Inst = instruments[instIdx]
			}

			if zoneID == 0 && zone.z.Inst == nil {
				p.GlobalZone = zone.z
			} else {
				p.Zones = append(p.Zones, zone.z)
			}
			zoneID++
		}

		out = append(out, p)
	}
	return out, nil
}

func presetFallbackName(bank, num int) string {
	return "Bank:" + itoa(bank) + ",Preset:" + itoa(num)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// zoneResult bundles the built zone with the linking generator amounts the
// caller still needs (sample id / instrument id), so buildZone itself stays
// agnostic to whether it's building a preset or instrument zone.
type zoneResult struct {
	z         *Zone
	linkValue int
	haveLink  bool
}

// buildZone decodes one zone's generator and modulator sub-lists out of the
// shared bag/gen/mod arrays. isPreset selects whether the Instrument-link
// generator (preset zones) or SampleID-link generator (instrument zones) is
// excluded from the generic Gen-array assignment and returned separately.
func buildZone(bags []sfdata.Bag, gens []sfdata.GenRecord, mods []sfdata.ModRecord, bagIdx int, isPreset bool) (zoneResult, error) {
	if bagIdx+1 >= len(bags) {
		return zoneResult{}, sferr.New(sferr.FormatInvariant, "zone bag index %d out of range", bagIdx)
	}
	bag := bags[bagIdx]
	next := bags[bagIdx+1]

	z := &Zone{
		KeyLo: 0, KeyHi: 127,
		VelLo: 0, VelHi: 127,
		Gen: gen.Defaults(),
	}

	linkGen := gen.SampleID
	if isPreset {
		linkGen = gen.Instrument
	}

	var linkValue int
	haveLink := false

	genLo, genHi := bag.GenNdx, next.GenNdx
	for gi := genLo; gi < genHi; gi++ {
		if int(gi) >= len(gens) {
			return zoneResult{}, sferr.New(sferr.FormatInvariant, "generator index %d out of range", gi)
		}
		g := gens[gi]
		idx := gen.Index(g.Oper)
		if !gen.Valid(int(idx)) {
			log.Debug("skipping unknown generator", "oper", g.Oper)
			continue
		}
		switch idx {
		case gen.KeyRange, gen.VelRange:
			lo, hi := g.RawAmount()
			if idx == gen.KeyRange {
				z.KeyLo, z.KeyHi = lo, hi
			} else {
				z.VelLo, z.VelHi = int(lo), int(hi)
			}
		case linkGen:
			linkValue = int(g.Amount)
			haveLink = true
		default:
			z.Gen[idx] = gen.Value{Val: float64(g.Amount), Flags: gen.Set}
		}
	}

	modLo, modHi := bag.ModNdx, next.ModNdx
	for mi := modLo; mi < modHi; mi++ {
		if int(mi) >= len(mods) {
			return zoneResult{}, sferr.New(sferr.FormatInvariant, "modulator index %d out of range", mi)
		}
		z.Mods = append(z.Mods, decodeModRecord(mods[mi]))
	}

	return zoneResult{z: z, linkValue: linkValue, haveLink: haveLink}, nil
}

func decodeModRecord(m sfdata.ModRecord) modulator.Mod {
	return modulator.Mod{
		Src1:      decodeSource(m.SrcOper),
		Src2:      decodeSource(m.AmtSrcOper),
		Dest:      gen.Index(m.DestOper),
		Amount:    float64(m.Amount),
		Transform: decodeTransform(m.TransOper),
	}
}

// decodeSource unpacks the SF2 sfModSrcOper bitfield: bits 0-6 select the
// controller (general palette) or CC number (MIDI palette, bit 7 set), bit
// 8 is polarity (0 unipolar/1 bipolar), bit 9 is direction
// (0 positive/1 negative), bits 10-15 select the curve shape.
func decodeSource(raw uint16) modulator.Source {
	index := raw & 0x7f
	palette := modulator.PaletteGeneral
	var ctrl modulator.Controller
	var midiCC uint8
	if raw&0x80 != 0 {
		palette = modulator.PaletteMIDI
		ctrl = modulator.CtrlMIDI
		midiCC = uint8(index)
	} else {
		switch index {
		case 0:
			ctrl = modulator.CtrlNone
		case 2:
			ctrl = modulator.CtrlNoteOnVelocity
		case 3:
			ctrl = modulator.CtrlNoteOnKey
		case 10:
			ctrl = modulator.CtrlPolyPressure
		case 13:
			ctrl = modulator.CtrlChannelPressure
		case 14:
			ctrl = modulator.CtrlPitchWheel
		case 16:
			ctrl = modulator.CtrlPitchWheelSensitivity
		case 127:
			ctrl = modulator.CtrlLink
		default:
			ctrl = modulator.CtrlNone
		}
	}

	curveBits := (raw >> 10) & 0x3f
	var curve modulator.Curve
	switch curveBits {
	case 1:
		curve = modulator.CurveConcave
	case 2:
		curve = modulator.CurveConvex
	case 3:
		curve = modulator.CurveSwitch
	default:
		curve = modulator.CurveLinear
	}

	return modulator.Source{
		Controller: ctrl,
		Palette:    palette,
		MIDICC:     midiCC,
		Curve:      curve,
		Bipolar:    raw&0x100 != 0,
		Negative:   raw&0x200 != 0,
	}
}

func decodeTransform(raw uint16) modulator.Transform {
	if raw == 2 {
		return modulator.TransformAbs
	}
	return modulator.TransformLinear
}
