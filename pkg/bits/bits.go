// Package bits holds the small bit and byte-order helpers shared by the
// APDU and TLV layers. Bit positions follow the ISO 7816 convention:
// bit 1 is the least significant bit, bit 8 the most significant.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// Set returns b with the n-th bit turned on.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// BYTE ORDER:
// Every multi-byte integer on the card interface (BER-TLV long lengths,
// READ BINARY offsets in P1-P2, the SSC) is big-endian. The helpers below
// assemble values byte by byte so the result never depends on host order.

// Uint16 assembles a big-endian 16-bit value from hi and lo.
func Uint16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// PutUint16 splits v into its big-endian high and low bytes.
func PutUint16(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}

// PutUint64 writes v into an 8-byte big-endian array.
func PutUint64(v uint64) [8]byte {
	var out [8]byte
	for i := 7; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}
