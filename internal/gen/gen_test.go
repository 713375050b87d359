package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsAreUnsetExceptDocumentedValues(t *testing.T) {
	d := Defaults()
	for i := range d {
		assert.Equal(t, Unset, d[i].Flags, "index %d should start Unset", i)
	}
	assert.Equal(t, 13500.0, d[InitialFilterFc].Val)
	assert.Equal(t, -12000.0, d[DelayVolEnv].Val)
	assert.Equal(t, -1.0, d[KeyNum].Val)
	assert.Equal(t, -1.0, d[OverrideRootKey].Val)
	assert.Equal(t, 100.0, d[ScaleTuning].Val)
	assert.Equal(t, 0.0, d[Pan].Val)
}

func TestForbiddenAtPresetLevel(t *testing.T) {
	assert.True(t, ForbiddenAtPresetLevel(ExclusiveClass))
	assert.True(t, ForbiddenAtPresetLevel(SampleModes))
	assert.True(t, ForbiddenAtPresetLevel(KeyNum))
	assert.False(t, ForbiddenAtPresetLevel(Pan))
	assert.False(t, ForbiddenAtPresetLevel(InitialAttenuation))
}

func TestValidBounds(t *testing.T) {
	assert.True(t, Valid(0))
	assert.True(t, Valid(int(Last)-1))
	assert.False(t, Valid(-1))
	assert.False(t, Valid(int(Last)))
}

func TestIndexStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "pan", Pan.String())
	assert.Equal(t, "unknown", Index(-1).String())
	assert.Equal(t, "unknown", Index(int(Last)+5).String())
}
