// Package riff reads RIFF-structured binary containers: chunk id, length,
// payload, with nested LIST support. It knows nothing about SF2 semantics.
package riff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Chunk is one RIFF chunk: a 4-byte id, its declared length, and its raw
// payload bytes.
type Chunk struct {
	ID   [4]byte
	Size uint32
	Data []byte
}

// Parse reads one chunk (id + size + payload) from r.
func (c *Chunk) Parse(r io.Reader) error {
	if _, err := io.ReadFull(r, c.ID[:]); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Size); err != nil {
		return err
	}
	c.Data = make([]byte, c.Size)
	if _, err := io.ReadFull(r, c.Data); err != nil {
		return err
	}
	return nil
}

// Expect reads a chunk from r and verifies its id matches want.
func (c *Chunk) Expect(r io.Reader, want [4]byte) error {
	if err := c.Parse(r); err != nil {
		return err
	}
	if c.ID != want {
		return fmt.Errorf("riff: expected chunk id %q, got %q", want, c.ID)
	}
	return nil
}

// Reader returns a reader over the chunk's payload.
func (c *Chunk) Reader() io.Reader {
	return bytes.NewReader(c.Data)
}

// IDOf builds a [4]byte chunk id from a 4-character string, panicking if s
// is not exactly 4 bytes. Intended for use with constant chunk-id literals.
func IDOf(s string) [4]byte {
	if len(s) != 4 {
		panic("riff: chunk id must be 4 bytes: " + s)
	}
	var id [4]byte
	copy(id[:], s)
	return id
}

// ExpectLiteral reads len(want) bytes from r and checks they equal want
// exactly — used for the form-type / list-type tag that follows a RIFF or
// LIST chunk's id+size header (e.g. "sfbk", "INFO", "sdta", "pdta").
func ExpectLiteral(r io.Reader, want string) (bool, error) {
	buf := make([]byte, len(want))
	if _, err := io.ReadFull(r, buf); err != nil {
		return false, err
	}
	return bytes.Equal(buf, []byte(want)), nil
}
