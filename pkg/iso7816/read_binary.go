package iso7816

import (
	"fmt"

	"github.com/gregLibert/mrtd/pkg/bits"
)

// READ BINARY COMMAND LOGIC (ISO 7816-4):
// The READ BINARY command (INS 'B0') reads part of a transparent EF.
//
// P1-P2 (Offset):
// - Bit 8 of P1 = 0: P1-P2 is a 15-bit big-endian offset into the current EF.
// - Bit 8 of P1 = 1: bits 5-1 of P1 are a short EF identifier and P2 is the
//   offset (0-255).
//
// Le is the number of bytes to read. eMRTD readers keep Le small so that the
// protected response fits in a single frame.

// MaxReadBinaryOffset is the largest offset addressable through P1-P2.
const MaxReadBinaryOffset = 0x7FFF

// ReadBinary creates a READ BINARY command for length bytes at offset in the
// currently selected EF.
func ReadBinary(cla Class, offset int, length int) (*CommandAPDU, error) {
	if offset < 0 || offset > MaxReadBinaryOffset {
		return nil, fmt.Errorf("offset %d out of range (max %d)", offset, MaxReadBinaryOffset)
	}
	if length < 1 || length > MaxShortLe {
		return nil, fmt.Errorf("length %d out of range (1-%d)", length, MaxShortLe)
	}

	ins, _ := NewInstruction(INS_READ_BINARY)
	p1, p2 := bits.PutUint16(uint16(offset))

	return NewCommandAPDU(cla, ins, p1, p2, nil, length), nil
}

// ReadBinarySFI creates a READ BINARY command that implicitly selects the EF
// by short identifier (1-30) and reads length bytes from offset (0-255).
func ReadBinarySFI(cla Class, sfi byte, offset byte, length int) (*CommandAPDU, error) {
	if sfi < 1 || sfi > 30 {
		return nil, fmt.Errorf("short EF identifier %d out of range (1-30)", sfi)
	}
	if length < 1 || length > MaxShortLe {
		return nil, fmt.Errorf("length %d out of range (1-%d)", length, MaxShortLe)
	}

	ins, _ := NewInstruction(INS_READ_BINARY)
	p1 := bits.Set(sfi, 8)

	return NewCommandAPDU(cla, ins, p1, offset, nil, length), nil
}

// Offset decodes the P1-P2 offset of a READ BINARY command.
// The second result is false when P1 carries a short EF identifier.
func (c *CommandAPDU) Offset() (int, bool) {
	if bits.IsSet(c.P1, 8) {
		return int(c.P2), false
	}
	return int(bits.Uint16(c.P1, c.P2)), true
}
