package iso7816

import (
	"bytes"
	"errors"
	"fmt"
)

// APDU (Application Protocol Data Unit) structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A mandatory 4-byte header (CLA INS P1 P2) and an optional body
// (Lc + Data, then Le).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short Length: Lc/Le encoded on 1 byte (Max 255/256).
//   - Extended Length: Lc/Le encoded on multiple bytes (Max 65535/65536).
//     Extended mode is triggered if Lc > 255 or Le > 256.
//
// RESPONSE APDU (R-APDU):
// An optional data field followed by the mandatory SW1 SW2 trailer.
//
// FRAME SIZE:
// eMRTD readers exchange one secure-messaging frame per command. Reads are
// sized so that a protected frame, with its DO'87', DO'99' and DO'8E'
// overhead, stays well within MaxFrameSize.

// APDU Limits and Constants according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode (1 byte).
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) encodable in Short Length mode.
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the theoretical limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in Extended Length mode.
	// In Extended mode, 0x0000 encodes 65536.
	MaxExtendedLe = 65536

	// MaxFrameSize bounds a single command or response frame on the wire.
	MaxFrameSize = 300
)

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// CheckFrame returns ErrFrameTooLarge when frame does not fit in MaxFrameSize.
func CheckFrame(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(frame), MaxFrameSize)
	}
	return nil
}

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
// Short or Extended encoding is chosen from len(Data) and Ne.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne
	if nc > MaxExtendedLc || ne > MaxExtendedLe || ne < 0 {
		return nil, fmt.Errorf("lengths out of range: Nc=%d Ne=%d", nc, ne)
	}

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{class, byte(c.Instruction.Raw), c.P1, c.P2})

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if isExtended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !isExtended:
			// 0x00 represents 256
			buf.WriteByte(byte(ne % MaxShortLe))
		default:
			// Case 2 Extended needs a leading 00 to tell Le from Lc.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 0x0000 represents 65536
			buf.Write([]byte{byte(ne >> 8), byte(ne)})
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// Bytes encodes the response as Data || SW1 SW2.
func (r *ResponseAPDU) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	return append(out, r.Status.SW1(), r.Status.SW2())
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
