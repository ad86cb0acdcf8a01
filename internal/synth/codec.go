package synth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var fieldMagic = [4]byte{'P', 'M', 'F', '1'}

// ErrBadFieldData is returned by DecodeField for malformed input.
var ErrBadFieldData = errors.New("malformed field data")

type fieldHeader struct {
	Magic     [4]byte
	Width     uint32
	Height    uint32
	PatchSize uint32
}

// EncodeField writes the field as a little-endian header followed by one
// packed word per cell.
func EncodeField(w io.Writer, f *Field) error {
	hdr := fieldHeader{
		Magic:     fieldMagic,
		Width:     uint32(f.width),
		Height:    uint32(f.height),
		PatchSize: uint32(f.patchSize),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("failed to write field header: %w", err)
	}
	words := make([]uint64, len(f.cells))
	for i := range f.cells {
		words[i] = f.cells[i].Load()
	}
	if err := binary.Write(w, binary.LittleEndian, words); err != nil {
		return fmt.Errorf("failed to write field cells: %w", err)
	}
	return nil
}

// DecodeField reads a field written by EncodeField.
func DecodeField(r io.Reader) (*Field, error) {
	var hdr fieldHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read field header: %w", err)
	}
	if hdr.Magic != fieldMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadFieldData, hdr.Magic[:])
	}
	w, h := int(hdr.Width), int(hdr.Height)
	if err := checkDimensions(w, h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFieldData, err)
	}
	if err := checkPatchSize(int(hdr.PatchSize)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFieldData, err)
	}

	// Row by row, so truncated data fails before the full field is allocated.
	var words []uint64
	row := make([]uint64, w)
	for y := 0; y < h; y++ {
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrBadFieldData, y, err)
		}
		words = append(words, row...)
	}
	f := newField(w, h, int(hdr.PatchSize))
	for i, v := range words {
		f.cells[i].Store(v)
	}
	return f, nil
}
