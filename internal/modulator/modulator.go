// Package modulator implements SF2 modulator routing records: a controller
// or MIDI-side signal mapped through a curve transform onto a generator
// destination (spec.md §3).
package modulator

import (
	"math"

	"github.com/oxisynth-go/sf2synth/internal/gen"
)

// Source identifies a modulator's controller source, packed the way SF2
// encodes sfModSrcOper: a controller-palette selector, a curve-shape tag,
// and polarity/direction bits.
type Source struct {
	Controller Controller
	Palette    Palette
	// MIDICC is the CC number this source reads when Palette == PaletteMIDI;
	// meaningless otherwise.
	MIDICC   uint8
	Curve    Curve
	Bipolar  bool
	Negative bool
}

// Controller is the MIDI-side signal a Source reads from.
type Controller int

const (
	CtrlNone Controller = iota
	CtrlNoteOnVelocity
	CtrlNoteOnKey
	CtrlPolyPressure
	CtrlChannelPressure
	CtrlPitchWheel
	CtrlPitchWheelSensitivity
	CtrlLink
	CtrlMIDI // Palette == PaletteMIDI: Controller is ignored, MIDICC holds the CC number.
)

// Palette selects whether Source reads a General Controller (the
// Controller field above) or an arbitrary MIDI CC number.
type Palette int

const (
	PaletteGeneral Palette = iota
	PaletteMIDI
)

// Curve is the shaping function applied to a normalized source value before
// scaling by Amount.
type Curve int

const (
	CurveLinear Curve = iota
	CurveConcave
	CurveConvex
	CurveSwitch
)

// Apply maps a normalized input x in [0,1] through the curve, honoring
// bipolar/negative per the SF2 modulator controller spec.
func (s Source) Apply(x float64) float64 {
	if s.Bipolar {
		x = x*2 - 1
		if s.Negative {
			x = -x
		}
	} else if s.Negative {
		x = 1 - x
	}
	switch s.Curve {
	case CurveConcave:
		return concave(x)
	case CurveConvex:
		return convex(x)
	case CurveSwitch:
		if x >= 0.5 {
			return 1
		}
		return 0
	default:
		return x
	}
}

func concave(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	if x <= 0 {
		return 0
	}
	v := -20.0 / 96.0 * math.Log10(1-x)
	if v > 1 {
		v = 1
	}
	return sign * v
}

func convex(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	if x <= 0 {
		return 0
	}
	v := 1 + 20.0/96.0*math.Log10(x)
	if v < 0 {
		v = 0
	}
	return sign * v
}

// Mod is a complete modulator routing record: src1 controls the amount
// directly, src2 (optionally) scales that amount, and the combined value
// is added onto Dest scaled by Amount.
type Mod struct {
	Src1      Source
	Src2      Source
	Dest      gen.Index
	Amount    float64
	// Transform is applied to the product of the two sources before
	// scaling by Amount. Only TransformLinear and TransformAbs are
	// assigned by SF2 files in practice, but both are modeled.
	Transform Transform
}

// Transform is the final shaping applied to a modulator's combined source
// value (distinct from the per-source Curve).
type Transform int

const (
	TransformLinear Transform = iota
	TransformAbs
)

// Identical reports whether a and b route the same signal to the same
// destination with the same transform. Amount deliberately does not
// participate — this is the identity spec.md §3 and §4.3 require for
// override/replace semantics during note-on layering.
func Identical(a, b Mod) bool {
	return a.Src1 == b.Src1 && a.Src2 == b.Src2 && a.Dest == b.Dest && a.Transform == b.Transform
}

// DefaultSet is the SF2-mandated implicit modulator list every voice starts
// with before any zone-level modulators are layered on top (SF2.01 §8.4.2).
func DefaultSet() []Mod {
	return []Mod{
		// MIDI Note-On Velocity -> Initial Attenuation, concave, negative unipolar.
		{
			Src1:   Source{Controller: CtrlNoteOnVelocity, Curve: CurveConcave, Negative: true},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.InitialAttenuation,
			Amount: 960,
		},
		// MIDI Note-On Velocity -> Filter Cutoff, linear, negative unipolar.
		{
			Src1:   Source{Controller: CtrlNoteOnVelocity, Curve: CurveLinear, Negative: true},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.InitialFilterFc,
			Amount: -2400,
		},
		// MIDI Channel Pressure -> Vibrato LFO Pitch Depth.
		{
			Src1:   Source{Controller: CtrlChannelPressure, Curve: CurveLinear},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.VibLFOToPitch,
			Amount: 50,
		},
		// MIDI Continuous Controller 1 (mod wheel) -> Vibrato LFO Pitch Depth.
		{
			Src1:   Source{Controller: CtrlMIDI, Palette: PaletteMIDI, MIDICC: 1, Curve: CurveLinear},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.VibLFOToPitch,
			Amount: 50,
		},
		// MIDI Continuous Controller 7 (volume) -> Initial Attenuation.
		{
			Src1:   Source{Controller: CtrlMIDI, Palette: PaletteMIDI, MIDICC: 7, Curve: CurveConcave, Negative: true},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.InitialAttenuation,
			Amount: 960,
		},
		// MIDI Continuous Controller 10 (pan) -> Pan.
		{
			Src1:   Source{Controller: CtrlMIDI, Palette: PaletteMIDI, MIDICC: 10, Curve: CurveLinear, Bipolar: true},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.Pan,
			Amount: 500,
		},
		// MIDI Continuous Controller 11 (expression) -> Initial Attenuation.
		{
			Src1:   Source{Controller: CtrlMIDI, Palette: PaletteMIDI, MIDICC: 11, Curve: CurveConcave, Negative: true},
			Src2:   Source{Controller: CtrlNone},
			Dest:   gen.InitialAttenuation,
			Amount: 960,
		},
		// Pitch Wheel x Pitch Wheel Sensitivity -> Pitch.
		{
			Src1:   Source{Controller: CtrlPitchWheel, Curve: CurveLinear, Bipolar: true},
			Src2:   Source{Controller: CtrlPitchWheelSensitivity, Curve: CurveLinear},
			Dest:   gen.FineTune,
			Amount: 12700,
		},
	}
}

// Layer implements the identity-replace-then-append algorithm used for both
// instrument-level and preset-level modulator layering (spec.md §4.3):
// build a working list starting from base, and for each m in overrides,
// remove any Identical entry already present before appending m.
func Layer(base []Mod, overrides []Mod) []Mod {
	list := make([]Mod, 0, len(base)+len(overrides))
	list = append(list, base...)
	for _, m := range overrides {
		out := list[:0:0]
		for _, existing := range list {
			if !Identical(existing, m) {
				out = append(out, existing)
			}
		}
		list = append(out, m)
	}
	return list
}

// Policy selects how AddToVoice combines an incoming modulator with an
// already-present identical one on a voice's running modulator list
// (spec.md §4.3: instrument-level modulators supersede, preset-level
// modulators add).
type Policy int

const (
	// PolicyOverwrite replaces an identical existing entry's Amount
	// (instrument-level layering).
	PolicyOverwrite Policy = iota
	// PolicyAdd sums Amount into an identical existing entry
	// (preset-level layering).
	PolicyAdd
)

// AddToVoice applies m onto voiceMods per policy: if an Identical entry is
// already present, its Amount is replaced (PolicyOverwrite) or summed
// (PolicyAdd); otherwise m is appended as a new entry regardless of
// policy. This is the single-modulator voice-level operation described in
// SF2.01 §9.4 bullets 6 and 8 (fluid_voice_add_mod in the FluidSynth
// lineage), distinct from Layer which merges two zone-level lists before
// any of this runs.
func AddToVoice(voiceMods []Mod, m Mod, policy Policy) []Mod {
	for i, existing := range voiceMods {
		if Identical(existing, m) {
			switch policy {
			case PolicyAdd:
				voiceMods[i].Amount += m.Amount
			default:
				voiceMods[i].Amount = m.Amount
			}
			return voiceMods
		}
	}
	return append(voiceMods, m)
}
