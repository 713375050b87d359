package modulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/oxisynth-go/sf2synth/internal/gen"
)

func TestIdenticalIgnoresAmount(t *testing.T) {
	a := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 100}
	b := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: -500}
	assert.True(t, Identical(a, b))

	c := Mod{Src1: Source{Controller: CtrlNoteOnKey}, Dest: gen.Pan, Amount: 100}
	assert.False(t, Identical(a, c))
}

func TestLayerReplacesIdenticalThenAppendsNew(t *testing.T) {
	base := []Mod{
		{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 100},
		{Src1: Source{Controller: CtrlNoteOnKey}, Dest: gen.InitialAttenuation, Amount: 200},
	}
	overrides := []Mod{
		{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 750}, // replaces
		{Src1: Source{Controller: CtrlMIDI}, Dest: gen.FineTune, Amount: 10},       // appended
	}
	got := Layer(base, overrides)

	assert.Len(t, got, 3)
	assert.Equal(t, 200.0, got[0].Amount, "untouched base entry keeps its amount")
	assert.Equal(t, 750.0, got[1].Amount, "replaced entry is removed and re-appended with the override's amount")
	assert.Equal(t, 10.0, got[2].Amount)
}

func TestAddToVoiceOverwritePolicy(t *testing.T) {
	m := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 100}
	voiceMods := []Mod{m}

	replaced := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 999}
	voiceMods = AddToVoice(voiceMods, replaced, PolicyOverwrite)

	assert.Len(t, voiceMods, 1)
	assert.Equal(t, 999.0, voiceMods[0].Amount)
}

func TestAddToVoiceAddPolicySums(t *testing.T) {
	m := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 100}
	voiceMods := []Mod{m}

	added := Mod{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 50}
	voiceMods = AddToVoice(voiceMods, added, PolicyAdd)

	assert.Len(t, voiceMods, 1)
	assert.Equal(t, 150.0, voiceMods[0].Amount)
}

func TestAddToVoiceAppendsWhenNoIdenticalEntry(t *testing.T) {
	voiceMods := []Mod{{Src1: Source{Controller: CtrlNoteOnVelocity}, Dest: gen.Pan, Amount: 100}}

	newM := Mod{Src1: Source{Controller: CtrlNoteOnKey}, Dest: gen.FineTune, Amount: 7}
	voiceMods = AddToVoice(voiceMods, newM, PolicyAdd)

	assert.Len(t, voiceMods, 2)
	assert.Equal(t, 7.0, voiceMods[1].Amount)
}

func TestApplySwitchCurveIsBinary(t *testing.T) {
	s := Source{Curve: CurveSwitch}
	assert.Equal(t, 0.0, s.Apply(0.49))
	assert.Equal(t, 1.0, s.Apply(0.5))
}

func TestApplyBipolarNegativeComposition(t *testing.T) {
	s := Source{Bipolar: true, Negative: true}
	// x=1 -> bipolar maps to 1 -> negative flips to -1
	assert.InDelta(t, -1.0, s.Apply(1), 1e-9)
	// x=0 -> bipolar maps to -1 -> negative flips to 1
	assert.InDelta(t, 1.0, s.Apply(0), 1e-9)
}

// Concave/convex curves are monotonic and stay within [-1, 1] for any
// unipolar input, regardless of sign.
func TestConcaveConvexStayBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Float64Range(-1, 1).Draw(t, "x")
		s := Source{Curve: CurveConcave}
		v := s.Apply(x)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)

		s2 := Source{Curve: CurveConvex}
		v2 := s2.Apply(x)
		assert.GreaterOrEqual(t, v2, -1.0)
		assert.LessOrEqual(t, v2, 1.0)
	})
}

// Layer is idempotent when applied with its own output as the new
// overrides list: re-layering an already-merged list onto itself must not
// grow it, since every entry is Identical to itself.
func TestLayerIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(t, "n")
		var mods []Mod
		for i := 0; i < n; i++ {
			mods = append(mods, Mod{
				Src1:   Source{Controller: Controller(i % 8)},
				Dest:   gen.Index(i % int(gen.Last)),
				Amount: rapid.Float64Range(-1000, 1000).Draw(t, "amount"),
			})
		}
		merged := Layer(mods, mods)
		assert.Len(t, merged, len(mods))
	})
}
