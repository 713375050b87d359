package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxisynth-go/sf2synth/internal/soundfont"
)

// stubResolver records the (bank, program) it was asked for and returns a
// fixed preset whenever the pair matches wantBank/wantProgram.
type stubResolver struct {
	wantBank, wantProgram int
	preset                *soundfont.Preset
}

func (s *stubResolver) FindPreset(bank, program int) *soundfont.Preset {
	if bank == s.wantBank && program == s.wantProgram {
		return s.preset
	}
	return nil
}

func TestNewHasGMPowerOnDefaults(t *testing.T) {
	c := New(3)
	assert.Equal(t, 3, c.Index)
	assert.Equal(t, 0, c.Bank())
	assert.Equal(t, 0, c.Program())
	assert.Equal(t, 100, c.CCValue(7))
	assert.Equal(t, 64, c.CCValue(10))
	assert.Equal(t, 127, c.CCValue(11))
}

func TestDrumChannelForcesBank128(t *testing.T) {
	c := New(9)
	c.BankSelect(5)
	assert.Equal(t, 5, c.Bank())

	c.SetDrum(true)
	assert.True(t, c.IsDrum())
	assert.Equal(t, 128, c.Bank(), "a drum channel always resolves to bank 128 regardless of BankSelect")
}

func TestResolvePresetWalksCurrentSelection(t *testing.T) {
	want := &soundfont.Preset{Name: "Grand Piano", Bank: 0, Num: 1}
	c := New(0)
	c.ProgramChange(1)
	r := &stubResolver{wantBank: 0, wantProgram: 1, preset: want}

	assert.Same(t, want, c.ResolvePreset(r))

	// Changing the program re-walks on the very next call - no cached
	// pointer survives a ProgramChange.
	c.ProgramChange(2)
	assert.Nil(t, c.ResolvePreset(r))
}

func TestCCOutOfRangeIsSilentlyIgnored(t *testing.T) {
	c := New(0)
	c.CC(-1, 50)
	c.CC(128, 50)
	assert.Equal(t, 0, c.CCValue(-1))
	assert.Equal(t, 0, c.CCValue(128))
}

func TestResetControllersLeavesBankProgramAlone(t *testing.T) {
	c := New(0)
	c.BankSelect(2)
	c.ProgramChange(9)
	c.PitchBend(1000)
	c.ChannelPressure(80)
	c.KeyPressure(60, 90)
	c.CC(11, 10)

	c.ResetControllers()

	assert.Equal(t, 2, c.Bank())
	assert.Equal(t, 9, c.Program())
	assert.Equal(t, 127, c.CCValue(11))
	assert.Equal(t, 0, c.channelPressure)
	assert.Equal(t, 0, c.keyPressure[60])
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	c := New(0)
	c.PitchBend(9000)
	c.ChannelPressure(64)
	c.KeyPressure(60, 77)

	snap := c.Snapshot(60, 100)
	assert.Equal(t, 100, snap.Velocity)
	assert.Equal(t, 60, snap.Key)
	assert.Equal(t, 77, snap.PolyPressure)
	assert.Equal(t, 64, snap.ChannelPressure)
	assert.Equal(t, 9000, snap.PitchWheel)
	assert.Equal(t, 100, snap.CC[7])
}
