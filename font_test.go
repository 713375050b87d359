package sf2synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxisynth-go/sf2synth/internal/soundfont"
)

func presetOnlyFont(bank, num int) *soundfont.SoundFont {
	return &soundfont.SoundFont{
		Name:    "stub",
		Presets: []*soundfont.Preset{{Name: "p", Bank: bank, Num: num}},
	}
}

func TestFindPresetWalksTopToBottom(t *testing.T) {
	fs := newFontStack()
	fs.fonts = []*loadedFont{
		{id: 2, font: presetOnlyFont(0, 0)}, // pushed "later", sits on top
		{id: 1, font: presetOnlyFont(0, 0)},
	}
	fs.fonts[0].font.Presets[0].Name = "top"
	fs.fonts[1].font.Presets[0].Name = "bottom"

	p := fs.FindPreset(0, 0)
	assert.Equal(t, "top", p.Name, "the first stack entry wins on a tie")
}

func TestFindPresetBankOffsetWrapsInsteadOfGoingNegative(t *testing.T) {
	fs := newFontStack()
	lf := &loadedFont{id: 1, font: presetOnlyFont(0, 0), bankOffset: 1}
	fs.fonts = []*loadedFont{lf}

	// Requesting bank 0 against an offset of 1 must wrap to a huge
	// effective bank (2^32 - 1), not -1, and therefore miss the bank-0
	// preset entirely.
	assert.Nil(t, fs.FindPreset(0, 0))

	// Requesting the offset itself resolves back to the font's bank 0.
	assert.NotNil(t, fs.FindPreset(1, 0))
}

func TestUnloadRemovesFontAndPresetNoLongerResolves(t *testing.T) {
	fs := newFontStack()
	fs.fonts = []*loadedFont{{id: 1, font: presetOnlyFont(0, 0)}}

	assert.NotNil(t, fs.FindPreset(0, 0))
	assert.True(t, fs.Unload(1))
	assert.Nil(t, fs.FindPreset(0, 0))
	assert.False(t, fs.Unload(1), "unloading an already-removed id reports false")
}

func TestSetBankOffsetUnknownIDReturnsFalse(t *testing.T) {
	fs := newFontStack()
	assert.False(t, fs.SetBankOffset(99, 1))
	_, ok := fs.BankOffset(99)
	assert.False(t, ok)
}
