// Package gen defines the SF2 generator table: the GEN_LAST = 60 parametric
// synthesis knobs (spec.md §3), their names, and their default values.
//
// The generator indices and the preset-level-forbidden set mirror the
// constants threaded through OxiSynth's loader
// (unoxidized/src/soundfont/sfloader.rs): GEN_STARTADDROFS..GEN_OVERRIDEROOTKEY.
package gen

// Index identifies one of the 60 generators by its SF2 enumeration value.
type Index int

const (
	StartAddrOfs Index = iota
	EndAddrOfs
	StartLoopAddrOfs
	EndLoopAddrOfs
	StartAddrCoarseOfs
	ModLFOToPitch
	VibLFOToPitch
	ModEnvToPitch
	InitialFilterFc
	InitialFilterQ
	ModLFOToFilterFc
	ModEnvToFilterFc
	EndAddrCoarseOfs
	ModLFOToVolume
	Unused1
	ChorusEffectsSend
	ReverbEffectsSend
	Pan
	Unused2
	Unused3
	Unused4
	DelayModLFO
	FreqModLFO
	DelayVibLFO
	FreqVibLFO
	DelayModEnv
	AttackModEnv
	HoldModEnv
	DecayModEnv
	SustainModEnv
	ReleaseModEnv
	KeynumToModEnvHold
	KeynumToModEnvDecay
	DelayVolEnv
	AttackVolEnv
	HoldVolEnv
	DecayVolEnv
	SustainVolEnv
	ReleaseVolEnv
	KeynumToVolEnvHold
	KeynumToVolEnvDecay
	Instrument
	Reserved1
	KeyRange
	VelRange
	StartLoopAddrCoarseOfs
	KeyNum
	Velocity
	InitialAttenuation
	Reserved2
	EndLoopAddrCoarseOfs
	CoarseTune
	FineTune
	SampleID
	SampleModes
	Reserved3
	ScaleTuning
	ExclusiveClass
	OverrideRootKey
	EndOper

	// Last is the exclusive upper bound: GEN_LAST = 60.
	Last = EndOper + 1
)

// Flags distinguishes "unset / default" from "explicitly set at this level".
type Flags uint8

const (
	// Unset means the generator was never assigned at this level.
	Unset Flags = iota
	// Set means the generator carries an explicit value at this level.
	Set
)

// Value is one (value, flags) slot in a generator array.
type Value struct {
	Val   float64
	Flags Flags
}

// Array is a fixed-size vector of GEN_LAST generator slots.
type Array [Last]Value

// names holds a human-readable label per generator index, for logging and
// diagnostics only.
var names = [Last]string{
	StartAddrOfs:           "startAddrsOffset",
	EndAddrOfs:             "endAddrsOffset",
	StartLoopAddrOfs:       "startloopAddrsOffset",
	EndLoopAddrOfs:         "endloopAddrsOffset",
	StartAddrCoarseOfs:     "startAddrsCoarseOffset",
	ModLFOToPitch:          "modLfoToPitch",
	VibLFOToPitch:          "vibLfoToPitch",
	ModEnvToPitch:          "modEnvToPitch",
	InitialFilterFc:        "initialFilterFc",
	InitialFilterQ:         "initialFilterQ",
	ModLFOToFilterFc:       "modLfoToFilterFc",
	ModEnvToFilterFc:       "modEnvToFilterFc",
	EndAddrCoarseOfs:       "endAddrsCoarseOffset",
	ModLFOToVolume:         "modLfoToVolume",
	Unused1:                "unused1",
	ChorusEffectsSend:      "chorusEffectsSend",
	ReverbEffectsSend:      "reverbEffectsSend",
	Pan:                    "pan",
	Unused2:                "unused2",
	Unused3:                "unused3",
	Unused4:                "unused4",
	DelayModLFO:            "delayModLFO",
	FreqModLFO:             "freqModLFO",
	DelayVibLFO:            "delayVibLFO",
	FreqVibLFO:             "freqVibLFO",
	DelayModEnv:            "delayModEnv",
	AttackModEnv:           "attackModEnv",
	HoldModEnv:             "holdModEnv",
	DecayModEnv:            "decayModEnv",
	SustainModEnv:          "sustainModEnv",
	ReleaseModEnv:          "releaseModEnv",
	KeynumToModEnvHold:     "keynumToModEnvHold",
	KeynumToModEnvDecay:    "keynumToModEnvDecay",
	DelayVolEnv:            "delayVolEnv",
	AttackVolEnv:           "attackVolEnv",
	HoldVolEnv:             "holdVolEnv",
	DecayVolEnv:            "decayVolEnv",
	SustainVolEnv:          "sustainVolEnv",
	ReleaseVolEnv:          "releaseVolEnv",
	KeynumToVolEnvHold:     "keynumToVolEnvHold",
	KeynumToVolEnvDecay:    "keynumToVolEnvDecay",
	Instrument:             "instrument",
	Reserved1:              "reserved1",
	KeyRange:               "keyRange",
	VelRange:               "velRange",
	StartLoopAddrCoarseOfs: "startloopAddrsCoarseOffset",
	KeyNum:                 "keynum",
	Velocity:               "velocity",
	InitialAttenuation:     "initialAttenuation",
	Reserved2:              "reserved2",
	EndLoopAddrCoarseOfs:   "endloopAddrsCoarseOffset",
	CoarseTune:             "coarseTune",
	FineTune:               "fineTune",
	SampleID:               "sampleID",
	SampleModes:            "sampleModes",
	Reserved3:              "reserved3",
	ScaleTuning:            "scaleTuning",
	ExclusiveClass:         "exclusiveClass",
	OverrideRootKey:        "overridingRootKey",
	EndOper:                "endOper",
}

func (i Index) String() string {
	if i < 0 || int(i) >= len(names) {
		return "unknown"
	}
	return names[i]
}

// Valid reports whether i is a real generator index (0 <= i < GEN_LAST).
func Valid(i int) bool {
	return i >= 0 && i < int(Last)
}

// forbiddenAtPresetLevel is the set of absolute-addressing and identity
// generators that must never be layered (added) at the preset level — they
// only make sense as an instrument-level override. Ported from the
// equivalent inline check in sfloader.rs::sf_noteon.
var forbiddenAtPresetLevel = map[Index]bool{
	StartAddrOfs:           true,
	EndAddrOfs:             true,
	StartLoopAddrOfs:       true,
	EndLoopAddrOfs:         true,
	StartAddrCoarseOfs:     true,
	EndAddrCoarseOfs:       true,
	StartLoopAddrCoarseOfs: true,
	EndLoopAddrCoarseOfs:   true,
	KeyNum:                 true,
	Velocity:               true,
	SampleModes:            true,
	ExclusiveClass:         true,
	OverrideRootKey:        true,
}

// ForbiddenAtPresetLevel reports whether a generator must be skipped during
// preset-level layering (spec.md §4.3 step 3, preset-level generators).
func ForbiddenAtPresetLevel(i Index) bool {
	return forbiddenAtPresetLevel[i]
}

// Defaults returns a fresh generator array with every slot at its default
// value and Unset flags.
func Defaults() Array {
	var a Array
	for i := range a {
		a[i] = Value{Val: defaultValues[i], Flags: Unset}
	}
	return a
}

// defaultValues holds the SF2-documented default amount for each generator.
// Most default to 0; envelope timecents default to -12000 (effectively
// instantaneous), filter cutoff defaults wide open, and a handful of
// identity-style generators default to "disabled" sentinels.
var defaultValues = [Last]float64{
	InitialFilterFc:     13500,
	DelayModLFO:          -12000,
	DelayVibLFO:          -12000,
	DelayModEnv:          -12000,
	AttackModEnv:         -12000,
	HoldModEnv:           -12000,
	DecayModEnv:          -12000,
	ReleaseModEnv:        -12000,
	DelayVolEnv:          -12000,
	AttackVolEnv:         -12000,
	HoldVolEnv:           -12000,
	DecayVolEnv:          -12000,
	ReleaseVolEnv:        -12000,
	KeyNum:               -1,
	Velocity:             -1,
	ScaleTuning:          100,
	OverrideRootKey:      -1,
}
