package sf2synth

import (
	"io"
	"os"

	"github.com/oxisynth-go/sf2synth/internal/sferr"
	"github.com/oxisynth-go/sf2synth/internal/soundfont"
)

// FontID identifies a loaded SoundFont across its lifetime. IDs are
// monotonically increasing and never reused, matching the
// DefaultSoundFont/sfcount pattern in the original's font stack (spec.md
// §4.7, SPEC_FULL §D "FontId sequencing").
type FontID uint32

// loadedFont is one entry on the font stack.
type loadedFont struct {
	id         FontID
	path       string
	font       *soundfont.SoundFont
	bankOffset uint32
}

// fontStack holds loaded SoundFonts top-to-bottom by priority: index 0 is
// searched first (spec.md §4.7).
type fontStack struct {
	fonts  []*loadedFont
	nextID FontID
}

func newFontStack() *fontStack {
	return &fontStack{nextID: 1}
}

// Load reads and resolves an SF2 file, pushing it onto the top of the
// stack.
func (fs *fontStack) Load(path string) (FontID, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, sferr.Wrap(sferr.IO, err, "open soundfont %q", path)
	}
	defer f.Close()
	return fs.loadFrom(path, f)
}

func (fs *fontStack) loadFrom(path string, r io.Reader) (FontID, error) {
	sf, err := soundfont.Load(r)
	if err != nil {
		return 0, err
	}
	id := fs.nextID
	fs.nextID++
	lf := &loadedFont{id: id, path: path, font: sf}
	fs.fonts = append([]*loadedFont{lf}, fs.fonts...)
	return id, nil
}

// Reload re-reads the font at id's original path, keeping its id and
// stack position.
func (fs *fontStack) Reload(id FontID) error {
	lf := fs.byID(id)
	if lf == nil {
		return sferr.New(sferr.Other, "sfreload: no soundfont with id %d", id)
	}
	f, err := os.Open(lf.path)
	if err != nil {
		return sferr.Wrap(sferr.IO, err, "reopen soundfont %q", lf.path)
	}
	defer f.Close()
	sf, err := soundfont.Load(f)
	if err != nil {
		return err
	}
	lf.font = sf
	return nil
}

// Unload removes a font from the stack by id.
func (fs *fontStack) Unload(id FontID) bool {
	for i, lf := range fs.fonts {
		if lf.id == id {
			fs.fonts = append(fs.fonts[:i], fs.fonts[i+1:]...)
			return true
		}
	}
	return false
}

func (fs *fontStack) Count() int { return len(fs.fonts) }

// ByIndex returns the font at stack position num (0 = top), or nil.
func (fs *fontStack) ByIndex(num int) *loadedFont {
	if num < 0 || num >= len(fs.fonts) {
		return nil
	}
	return fs.fonts[num]
}

func (fs *fontStack) byID(id FontID) *loadedFont {
	for _, lf := range fs.fonts {
		if lf.id == id {
			return lf
		}
	}
	return nil
}

// SetBankOffset sets the bank offset subtracted from a requested bank
// before lookup in this font.
func (fs *fontStack) SetBankOffset(id FontID, offset uint32) bool {
	lf := fs.byID(id)
	if lf == nil {
		return false
	}
	lf.bankOffset = offset
	return true
}

// BankOffset returns the current bank offset for id.
func (fs *fontStack) BankOffset(id FontID) (uint32, bool) {
	lf := fs.byID(id)
	if lf == nil {
		return 0, false
	}
	return lf.bankOffset, true
}

// FindPreset walks the stack top-to-bottom; first hit wins (spec.md §4.7).
// Each font's bank offset is subtracted from the requested bank with
// unsigned wraparound, matching banknum.wrapping_sub(offset) in the
// original (SPEC_FULL §D).
func (fs *fontStack) FindPreset(bank, program int) *soundfont.Preset {
	for _, lf := range fs.fonts {
		effective := int(uint32(bank) - lf.bankOffset)
		if p := lf.font.FindPreset(effective, program); p != nil {
			return p
		}
	}
	return nil
}

// FindPresetInFont looks up (bank, program) in one specific font by id,
// applying that font's own bank offset (get_preset in the original).
func (fs *fontStack) FindPresetInFont(id FontID, bank, program int) *soundfont.Preset {
	lf := fs.byID(id)
	if lf == nil {
		return nil
	}
	effective := int(uint32(bank) - lf.bankOffset)
	return lf.font.FindPreset(effective, program)
}
