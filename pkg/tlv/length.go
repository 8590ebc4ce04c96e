package tlv

import (
	"errors"
	"fmt"

	"github.com/gregLibert/mrtd/pkg/bits"
)

// LENGTH FIELD ENCODING (BER-TLV, ISO/IEC 8825-1):
// The length that follows a tag has one of three widths on eMRTD chips:
//
//   - Short form: one byte 0x00-0x7F holding the length itself.
//   - Long form 0x81: one extra byte, lengths 0x80-0xFF.
//   - Long form 0x82: two extra bytes, big-endian, lengths up to 0xFFFF.
//
// Longer forms (0x83 and up) are legal BER but never used by the LDS and are
// rejected here.

var (
	// ErrUnsupportedLength is returned for a leading length byte outside the
	// short, 0x81 and 0x82 forms.
	ErrUnsupportedLength = errors.New("unsupported BER-TLV length form")

	// ErrTruncatedLength is returned when the input ends inside a length field.
	ErrTruncatedLength = errors.New("truncated BER-TLV length field")
)

// MaxLength is the largest value EncodeLength can represent.
const MaxLength = 0xFFFF

// LengthField is a decoded BER-TLV length: the declared value and the number
// of bytes the field itself occupied.
type LengthField struct {
	Value int
	Width int
}

// DecodeLength parses the length field at the start of data.
func DecodeLength(data []byte) (LengthField, error) {
	if len(data) == 0 {
		return LengthField{}, ErrTruncatedLength
	}

	first := data[0]
	switch {
	case first <= 0x7F:
		return LengthField{Value: int(first), Width: 1}, nil

	case first == 0x81:
		if len(data) < 2 {
			return LengthField{}, ErrTruncatedLength
		}
		return LengthField{Value: int(data[1]), Width: 2}, nil

	case first == 0x82:
		if len(data) < 3 {
			return LengthField{}, ErrTruncatedLength
		}
		return LengthField{Value: int(bits.Uint16(data[1], data[2])), Width: 3}, nil

	default:
		return LengthField{}, fmt.Errorf("%w: leading byte 0x%02X", ErrUnsupportedLength, first)
	}
}

// EncodeLength returns the minimal BER-TLV length field for n.
func EncodeLength(n int) ([]byte, error) {
	switch {
	case n < 0 || n > MaxLength:
		return nil, fmt.Errorf("%w: length %d out of range", ErrUnsupportedLength, n)
	case n <= 0x7F:
		return []byte{byte(n)}, nil
	case n <= 0xFF:
		return []byte{0x81, byte(n)}, nil
	default:
		hi, lo := bits.PutUint16(uint16(n))
		return []byte{0x82, hi, lo}, nil
	}
}
