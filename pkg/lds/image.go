package lds

import (
	"bytes"
	"fmt"
	"os"
)

// FACIAL IMAGE LOCATION (EF.DG2):
// The biometric data block starts with fixed-size headers. The byte at
// offset 73 tells the image codec apart (0 for JPEG), and the image itself
// starts within the first 120 bytes, at its codec's magic sequence.

// Codec is the image encoding found in a biometric data group.
type Codec int

const (
	JPEG Codec = iota
	JPEG2000
)

func (c Codec) String() string {
	switch c {
	case JPEG:
		return "JPEG"
	case JPEG2000:
		return "JPEG2000"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// Extension returns the file extension for the codec, dot included.
func (c Codec) Extension() string {
	if c == JPEG {
		return ".jpg"
	}
	return ".jp2"
}

const (
	minImageRecord = 85
	codecOffset    = 73
	scanWindow     = 120
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}
	jp2Magic  = []byte{0x00, 0x00, 0x00, 0x0C, 0x6A, 0x50, 0x20, 0x20, 0x0D, 0x0A}
)

// magic returns the start sequence to look for. A JPEG matches on its SOI
// marker alone (FF D8), since the APPn segment that follows varies.
func (c Codec) magic() []byte {
	if c == JPEG {
		return jpegMagic[:2]
	}
	return jp2Magic
}

// Image is an image located inside a data group.
// Data aliases the input of ExtractImage from Offset to its end.
type Image struct {
	Data   []byte
	Offset int
	Codec  Codec
}

// ExtractImage locates the facial image inside an EF.DG2 file.
func ExtractImage(data []byte) (*Image, error) {
	if len(data) < minImageRecord {
		return nil, fmt.Errorf("%w: image record of %d bytes, need at least %d", ErrFormat, len(data), minImageRecord)
	}

	codec := JPEG2000
	if data[codecOffset] == 0 {
		codec = JPEG
	}

	magic := codec.magic()
	for i := 0; i < scanWindow && i+len(magic) <= len(data); i++ {
		if bytes.Equal(data[i:i+len(magic)], magic) {
			return &Image{Data: data[i:], Offset: i, Codec: codec}, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s start in the first %d bytes", ErrNotFound, codec, scanWindow)
}

// SaveImage writes img next to base, replacing a 3-letter extension of base
// with the codec's, and returns the path written.
func SaveImage(base string, img *Image) (string, error) {
	if n := len(base); n > 4 && base[n-4] == '.' {
		base = base[:n-4]
	}
	path := base + img.Codec.Extension()

	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}
