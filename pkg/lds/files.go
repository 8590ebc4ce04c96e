package lds

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// FileID is the 2-byte identifier used to SELECT an elementary file.
type FileID [2]byte

func (f FileID) String() string {
	return fmt.Sprintf("%02X%02X", f[0], f[1])
}

// SFI returns the short EF identifier of f. Files of the LDS1 application
// carry it in the low byte of their identifier.
func (f FileID) SFI() byte {
	return f[1]
}

// ParseFileID parses a 4-digit hex identifier such as "011E".
func ParseFileID(s string) (FileID, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil || len(raw) != 2 {
		return FileID{}, fmt.Errorf("invalid file identifier %q: want 4 hex digits", s)
	}
	return FileID{raw[0], raw[1]}, nil
}

// NotDefined is the name reported for tags outside the LDS table.
const NotDefined = "not defined"

// DataGroup ties an LDS file's tag, as listed in EF.COM, to its name and
// file identifier.
type DataGroup struct {
	Tag  byte
	Name string
	File FileID
}

// LDS1AID is the DF name of the LDS1 eMRTD application.
var LDS1AID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

// Elementary files of the LDS1 application (ICAO Doc 9303 part 10).
var (
	EFCOM  = FileID{0x01, 0x1E}
	EFSOD  = FileID{0x01, 0x1D}
	EFDG1  = FileID{0x01, 0x01}
	EFDG2  = FileID{0x01, 0x02}
	EFDG3  = FileID{0x01, 0x03}
	EFDG4  = FileID{0x01, 0x04}
	EFDG5  = FileID{0x01, 0x05}
	EFDG6  = FileID{0x01, 0x06}
	EFDG7  = FileID{0x01, 0x07}
	EFDG8  = FileID{0x01, 0x08}
	EFDG9  = FileID{0x01, 0x09}
	EFDG10 = FileID{0x01, 0x0A}
	EFDG11 = FileID{0x01, 0x0B}
	EFDG12 = FileID{0x01, 0x0C}
	EFDG13 = FileID{0x01, 0x0D}
	EFDG14 = FileID{0x01, 0x0E}
	EFDG15 = FileID{0x01, 0x0F}
	EFDG16 = FileID{0x01, 0x10}
)

// DataGroups lists every known LDS file. DG2 and DG4 use the application
// tags 0x75 and 0x76 rather than the 0x6X row.
var DataGroups = []DataGroup{
	{0x60, "EF_COM", EFCOM},
	{0x61, "EF_DG1", EFDG1},
	{0x75, "EF_DG2", EFDG2},
	{0x63, "EF_DG3", EFDG3},
	{0x76, "EF_DG4", EFDG4},
	{0x65, "EF_DG5", EFDG5},
	{0x66, "EF_DG6", EFDG6},
	{0x67, "EF_DG7", EFDG7},
	{0x68, "EF_DG8", EFDG8},
	{0x69, "EF_DG9", EFDG9},
	{0x6A, "EF_DG10", EFDG10},
	{0x6B, "EF_DG11", EFDG11},
	{0x6C, "EF_DG12", EFDG12},
	{0x6D, "EF_DG13", EFDG13},
	{0x6E, "EF_DG14", EFDG14},
	{0x6F, "EF_DG15", EFDG15},
	{0x70, "EF_DG16", EFDG16},
	{0x77, "EF_SOD", EFSOD},
}

func lookupTag(tag byte) (DataGroup, bool) {
	for _, dg := range DataGroups {
		if dg.Tag == tag {
			return dg, true
		}
	}
	return DataGroup{}, false
}

// TagName returns the canonical file name for an LDS tag, or NotDefined.
func TagName(tag byte) string {
	if dg, ok := lookupTag(tag); ok {
		return dg.Name
	}
	return NotDefined
}

// FileIDForTag returns the file identifier of the LDS file with the given tag.
func FileIDForTag(tag byte) (FileID, bool) {
	dg, ok := lookupTag(tag)
	return dg.File, ok
}
