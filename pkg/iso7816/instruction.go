package iso7816

import (
	"fmt"

	"github.com/gregLibert/mrtd/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// 1. Data Encoding (Bit 1):
//    When using the interindustry class, bit 1 indicates the format of the
//    data field: 0 for plain, 1 for BER-TLV encoded data.
//    Example: READ BINARY (0xB0) vs READ BINARY (BER-TLV) (0xB1).
//
// 2. Reserved Ranges:
//    INS values where the upper nibble is '6' or '9' are invalid. They are
//    reserved for Status Words (SW1) and transport procedures (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by eMRTD access (ICAO Doc 9303 part 10/11).
const (
	INS_MANAGE_SECURITY_ENVIRONMENT InsCode = 0x22
	INS_EXTERNAL_AUTHENTICATE       InsCode = 0x82
	INS_GET_CHALLENGE               InsCode = 0x84
	INS_GENERAL_AUTHENTICATE        InsCode = 0x86
	INS_INTERNAL_AUTHENTICATE       InsCode = 0x88
	INS_SELECT                      InsCode = 0xA4
	INS_READ_BINARY                 InsCode = 0xB0
	INS_READ_BINARY_BER             InsCode = 0xB1
	INS_GET_RESPONSE                InsCode = 0xC0
)

var insNames = map[InsCode]string{
	INS_MANAGE_SECURITY_ENVIRONMENT: "INS_MANAGE_SECURITY_ENVIRONMENT",
	INS_EXTERNAL_AUTHENTICATE:       "INS_EXTERNAL_AUTHENTICATE",
	INS_GET_CHALLENGE:               "INS_GET_CHALLENGE",
	INS_GENERAL_AUTHENTICATE:        "INS_GENERAL_AUTHENTICATE",
	INS_INTERNAL_AUTHENTICATE:       "INS_INTERNAL_AUTHENTICATE",
	INS_SELECT:                      "INS_SELECT",
	INS_READ_BINARY:                 "INS_READ_BINARY",
	INS_READ_BINARY_BER:             "INS_READ_BINARY_BER",
	INS_GET_RESPONSE:                "INS_GET_RESPONSE",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := byte(ins) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
