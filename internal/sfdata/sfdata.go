// Package sfdata decodes the raw RIFF record arrays out of an SF2 file: the
// INFO list, the sdta sample chunk, and the nine fixed-width pdta "hydra"
// arrays (phdr/pbag/pmod/pgen/inst/ibag/imod/igen/shdr). It performs no
// semantic interpretation — zone inheritance, generator layering, and
// sample-link pairing live in internal/soundfont.
package sfdata

import (
	"encoding/binary"
	"io"

	"github.com/oxisynth-go/sf2synth/internal/riff"
	"github.com/oxisynth-go/sf2synth/internal/sferr"
	"github.com/oxisynth-go/sf2synth/internal/xlog"
)

var log = xlog.For("sfdata")

// Info is the SF2 INFO list, holding bank-wide metadata.
type Info struct {
	VersionMajor, VersionMinor uint16
	Engine                     string
	Name                       string
	ROM                        string
	ROMVerMajor, ROMVerMinor   uint16
	CreationDate               string
	Engineers                  string
	Product                    string
	Copyright                  string
	Comments                   string
	Software                   string
}

// PresetHeader is one fixed 38-byte phdr record.
type PresetHeader struct {
	Name         [20]byte
	Preset       uint16
	Bank         uint16
	PresetBagNdx uint16
	Library      uint32
	Genre        uint32
	Morphology   uint32
}

// Bag is one fixed 4-byte pbag or ibag record: the start index of this
// zone's generator and modulator sub-lists.
type Bag struct {
	GenNdx uint16
	ModNdx uint16
}

// ModRecord is one fixed 10-byte pmod or imod record, in raw wire form —
// interpreted into a modulator.Mod by internal/soundfont.
type ModRecord struct {
	SrcOper    uint16
	DestOper   uint16
	Amount     int16
	AmtSrcOper uint16
	TransOper  uint16
}

// GenRecord is one fixed 4-byte pgen or igen record, in raw wire form.
// Amount is read as a signed 16-bit value; for the key/velocity range
// generators the two bytes are actually (lo, hi) and are reinterpreted in
// internal/soundfont.
type GenRecord struct {
	Oper   uint16
	Amount int16
}

// RawAmount returns the generator amount reinterpreted as two unsigned
// bytes (lo, hi), for the range-valued generators (KeyRange, VelRange).
func (g GenRecord) RawAmount() (lo, hi uint8) {
	u := uint16(g.Amount)
	return uint8(u & 0xff), uint8(u >> 8)
}

// InstHeader is one fixed 22-byte inst record.
type InstHeader struct {
	Name       [20]byte
	InstBagNdx uint16
}

// SampleLinkType is the sfSampleLink enumeration on a sample header.
type SampleLinkType uint16

const (
	SampleMono     SampleLinkType = 1
	SampleRight    SampleLinkType = 2
	SampleLeft     SampleLinkType = 4
	SampleLinked   SampleLinkType = 8
	SampleRomMono  SampleLinkType = 0x8001
	SampleRomRight SampleLinkType = 0x8002
	SampleRomLeft  SampleLinkType = 0x8004
	SampleRomLink  SampleLinkType = 0x8008
)

// IsROM reports whether the link type designates a ROM sample, which this
// synth cannot render (no ROM wavetable is available) and must skip.
func (t SampleLinkType) IsROM() bool {
	return t&0x8000 != 0
}

// SampleHeader is one fixed 46-byte shdr record.
type SampleHeader struct {
	Name            [20]byte
	Start           uint32
	End             uint32
	StartLoop       uint32
	EndLoop         uint32
	SampleRate      uint32
	OriginalPitch   uint8
	PitchCorrection int8
	SampleLink      uint16
	SampleType      SampleLinkType
}

// NameString trims the fixed-width, NUL-padded ASCII name field.
func NameString(b [20]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// Hydra collects the nine fixed-record pdta arrays. Every array ends with
// one extra terminal record per the SF2 spec; callers iterate len-1 zones.
type Hydra struct {
	Presets              []PresetHeader
	PresetBags           []Bag
	PresetMods           []ModRecord
	PresetGens           []GenRecord
	Instruments          []InstHeader
	InstrumentBags       []Bag
	InstrumentMods       []ModRecord
	InstrumentGens       []GenRecord
	Samples              []SampleHeader
}

// Raw is the fully decoded, semantically uninterpreted content of an SF2
// file.
type Raw struct {
	Info       Info
	SampleData []int16
	Hydra      Hydra
}

var (
	idRIFF = riff.IDOf("RIFF")
	idLIST = riff.IDOf("LIST")
)

// Decode parses a complete SF2 file from r.
func Decode(r io.Reader) (*Raw, error) {
	var top riff.Chunk
	if err := top.Expect(r, idRIFF); err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading RIFF header")
	}
	body := top.Reader()

	ok, err := riff.ExpectLiteral(body, "sfbk")
	if err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading sfbk form type")
	}
	if !ok {
		return nil, sferr.New(sferr.FormatInvariant, "not an SF2 file: missing sfbk form type")
	}

	var infoList riff.Chunk
	if err := infoList.Expect(body, idLIST); err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading INFO list header")
	}
	info, err := decodeInfo(infoList.Reader())
	if err != nil {
		return nil, err
	}

	var sdtaList riff.Chunk
	if err := sdtaList.Expect(body, idLIST); err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading sdta list header")
	}
	samples, err := decodeSdta(sdtaList.Reader())
	if err != nil {
		return nil, err
	}

	var pdtaList riff.Chunk
	if err := pdtaList.Expect(body, idLIST); err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading pdta list header")
	}
	hydra, err := decodeHydra(pdtaList.Reader())
	if err != nil {
		return nil, err
	}

	return &Raw{Info: *info, SampleData: samples, Hydra: *hydra}, nil
}

func decodeInfo(r io.Reader) (*Info, error) {
	ok, err := riff.ExpectLiteral(r, "INFO")
	if err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading INFO list type")
	}
	if !ok {
		return nil, sferr.New(sferr.FormatInvariant, "expected INFO list type")
	}

	info := &Info{}
	sawIfil := false
	for {
		var ck riff.Chunk
		if err := ck.Parse(r); err != nil {
			if err == io.EOF {
				break
			}
			return nil, sferr.Wrap(sferr.IO, err, "reading INFO sub-chunk")
		}
		switch string(ck.ID[:]) {
		case "ifil":
			if ck.Size != 4 {
				return nil, sferr.New(sferr.FormatInvariant, "ifil sub-chunk must be 4 bytes")
			}
			info.VersionMajor = binary.LittleEndian.Uint16(ck.Data[0:2])
			info.VersionMinor = binary.LittleEndian.Uint16(ck.Data[2:4])
			sawIfil = true
		case "isng":
			info.Engine = trimZ(ck.Data)
		case "INAM":
			info.Name = trimZ(ck.Data)
		case "irom":
			info.ROM = trimZ(ck.Data)
		case "iver":
			if ck.Size != 4 {
				return nil, sferr.New(sferr.FormatInvariant, "iver sub-chunk must be 4 bytes")
			}
			info.ROMVerMajor = binary.LittleEndian.Uint16(ck.Data[0:2])
			info.ROMVerMinor = binary.LittleEndian.Uint16(ck.Data[2:4])
		case "ICRD":
			info.CreationDate = trimZ(ck.Data)
		case "IENG":
			info.Engineers = trimZ(ck.Data)
		case "IPRD":
			info.Product = trimZ(ck.Data)
		case "ICOP":
			info.Copyright = trimZ(ck.Data)
		case "ICMT":
			info.Comments = trimZ(ck.Data)
		case "ISFT":
			info.Software = trimZ(ck.Data)
		default:
			log.Debug("skipping unknown INFO sub-chunk", "id", string(ck.ID[:]))
		}
	}
	if !sawIfil {
		return nil, sferr.New(sferr.FormatInvariant, "INFO list missing mandatory ifil sub-chunk")
	}
	if info.Engine == "" {
		info.Engine = "EMU8000"
	}
	return info, nil
}

func trimZ(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

func decodeSdta(r io.Reader) ([]int16, error) {
	ok, err := riff.ExpectLiteral(r, "sdta")
	if err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading sdta list type")
	}
	if !ok {
		return nil, sferr.New(sferr.FormatInvariant, "expected sdta list type")
	}

	var smpl riff.Chunk
	if err := smpl.Expect(r, riff.IDOf("smpl")); err != nil {
		if err == io.EOF {
			return nil, sferr.New(sferr.FormatInvariant, "sdta list missing mandatory smpl sub-chunk")
		}
		return nil, sferr.Wrap(sferr.IO, err, "reading smpl sub-chunk")
	}
	if smpl.Size%2 != 0 {
		return nil, sferr.New(sferr.FormatInvariant, "smpl chunk size is not a multiple of 2")
	}
	out := make([]int16, smpl.Size/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(smpl.Data[i*2 : i*2+2]))
	}

	// sm24 (24-bit extension) is not consumed: this synth renders at 16-bit
	// sample resolution, matching spec.md's PCM sample model.
	return out, nil
}

func decodeHydra(r io.Reader) (*Hydra, error) {
	ok, err := riff.ExpectLiteral(r, "pdta")
	if err != nil {
		return nil, sferr.Wrap(sferr.IO, err, "reading pdta list type")
	}
	if !ok {
		return nil, sferr.New(sferr.FormatInvariant, "expected pdta list type")
	}

	h := &Hydra{}
	seen := map[string]bool{}

	for {
		var ck riff.Chunk
		if err := ck.Parse(r); err != nil {
			if err == io.EOF {
				break
			}
			return nil, sferr.Wrap(sferr.IO, err, "reading pdta sub-chunk")
		}
		id := string(ck.ID[:])
		seen[id] = true

		switch id {
		case "phdr":
			if err := checkMod(ck.Size, 38, id); err != nil {
				return nil, err
			}
			h.Presets = make([]PresetHeader, ck.Size/38)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.Presets); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding phdr")
			}
		case "pbag":
			if err := checkMod(ck.Size, 4, id); err != nil {
				return nil, err
			}
			h.PresetBags = decodeBags(ck.Data)
		case "pmod":
			if err := checkMod(ck.Size, 10, id); err != nil {
				return nil, err
			}
			h.PresetMods = make([]ModRecord, ck.Size/10)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.PresetMods); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding pmod")
			}
		case "pgen":
			if err := checkMod(ck.Size, 4, id); err != nil {
				return nil, err
			}
			h.PresetGens = make([]GenRecord, ck.Size/4)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.PresetGens); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding pgen")
			}
		case "inst":
			if err := checkMod(ck.Size, 22, id); err != nil {
				return nil, err
			}
			h.Instruments = make([]InstHeader, ck.Size/22)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.Instruments); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding inst")
			}
		case "ibag":
			if err := checkMod(ck.Size, 4, id); err != nil {
				return nil, err
			}
			h.InstrumentBags = decodeBags(ck.Data)
		case "imod":
			if err := checkMod(ck.Size, 10, id); err != nil {
				return nil, err
			}
			h.InstrumentMods = make([]ModRecord, ck.Size/10)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.InstrumentMods); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding imod")
			}
		case "igen":
			if err := checkMod(ck.Size, 4, id); err != nil {
				return nil, err
			}
			h.InstrumentGens = make([]GenRecord, ck.Size/4)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.InstrumentGens); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding igen")
			}
		case "shdr":
			if err := checkMod(ck.Size, 46, id); err != nil {
				return nil, err
			}
			h.Samples = make([]SampleHeader, ck.Size/46)
			if err := binary.Read(ck.Reader(), binary.LittleEndian, &h.Samples); err != nil {
				return nil, sferr.Wrap(sferr.IO, err, "decoding shdr")
			}
			// The last record is the terminal EOS entry and carries no type.
			for i := 0; i+1 < len(h.Samples); i++ {
				switch h.Samples[i].SampleType &^ 0x8000 {
				case SampleMono, SampleRight, SampleLeft, SampleLinked:
				default:
					return nil, sferr.New(sferr.FormatInvariant, "sample %q has unknown sample type %#x",
						NameString(h.Samples[i].Name), uint16(h.Samples[i].SampleType))
				}
			}
		default:
			log.Debug("skipping unknown pdta sub-chunk", "id", id)
		}
	}

	for _, id := range []string{"phdr", "pbag", "pmod", "pgen", "inst", "ibag", "imod", "igen", "shdr"} {
		if !seen[id] {
			return nil, sferr.New(sferr.FormatInvariant, "pdta list missing mandatory %s sub-chunk", id)
		}
	}
	return h, nil
}

func decodeBags(data []byte) []Bag {
	out := make([]Bag, len(data)/4)
	for i := range out {
		out[i].GenNdx = binary.LittleEndian.Uint16(data[i*4 : i*4+2])
		out[i].ModNdx = binary.LittleEndian.Uint16(data[i*4+2 : i*4+4])
	}
	return out
}

func checkMod(size uint32, recordSize int, chunkID string) error {
	if int(size)%recordSize != 0 {
		return sferr.New(sferr.FormatInvariant, "%s chunk size %d is not a multiple of %d", chunkID, size, recordSize)
	}
	return nil
}
