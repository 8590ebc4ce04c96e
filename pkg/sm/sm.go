/*
Package sm implements Basic Access Control secure messaging (ICAO Doc 9303 part 11, ISO/IEC 7816-4 section 10) for the lds file reader.

A protected command carries its data encrypted in DO'87' with 3DES-CBC under KSenc, the expected length in DO'97', and a retail MAC under KSmac over the send sequence counter, the padded header and those objects in DO'8E':

	0C A4 02 0C | Lc | 87 L 01 <enc> | 8E 08 <mac> | 00

A protected response carries the encrypted data in DO'87', the status word in DO'99' and the MAC in DO'8E'. Unprotect checks the MAC before decrypting anything.

Session key derivation and the mutual authentication that yields KSenc, KSmac and the initial SSC are not part of this package.
*/
package sm

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/mrtd/pkg/bits"
	"github.com/gregLibert/mrtd/pkg/iso7816"
	"github.com/gregLibert/mrtd/pkg/lds"
	"github.com/gregLibert/mrtd/pkg/tlv"
)

var (
	// ErrKeyLength is returned when KSenc or KSmac is not a 16-byte 2-key 3DES key.
	ErrKeyLength = errors.New("session key must be 16 bytes")

	// ErrMAC is returned when the response MAC does not verify.
	ErrMAC = errors.New("response MAC mismatch")

	// ErrMalformedResponse is returned when the protected response objects
	// cannot be parsed or decrypted.
	ErrMalformedResponse = errors.New("malformed protected response")
)

// Response data object tags, as reported by bertlv.
const (
	tagEncryptedData = "87"
	tagStatus        = "99"
	tagChecksum      = "8E"

	paddingIndicator = 0x01
	macSize          = 8
)

// Messenger is the BAC secure messaging adapter. It holds no state: the keys
// and counter come with every call.
type Messenger struct{}

var _ lds.SecureMessenger = Messenger{}

// command is a short-length command APDU split into its parts.
type command struct {
	header [4]byte
	data   []byte
	le     int // -1 when absent
}

func parseCommand(raw []byte) (command, error) {
	if len(raw) < 4 {
		return command{}, fmt.Errorf("command too short: %d bytes", len(raw))
	}

	cmd := command{le: -1}
	copy(cmd.header[:], raw[:4])
	body := raw[4:]

	switch {
	case len(body) == 0:
	case len(body) == 1:
		cmd.le = shortLe(body[0])
	case body[0] == 0:
		return command{}, errors.New("extended length commands are not supported")
	default:
		lc := int(body[0])
		switch len(body) {
		case 1 + lc:
		case 2 + lc:
			cmd.le = shortLe(body[1+lc])
		default:
			return command{}, fmt.Errorf("Lc %d does not match a body of %d bytes", lc, len(body))
		}
		cmd.data = body[1 : 1+lc]
	}
	return cmd, nil
}

func shortLe(b byte) int {
	if b == 0 {
		return iso7816.MaxShortLe
	}
	return int(b)
}

// Protect wraps a plain short-length command APDU.
func (Messenger) Protect(cmd []byte, keys lds.SessionKeys, ssc uint64) ([]byte, error) {
	parsed, err := parseCommand(cmd)
	if err != nil {
		return nil, err
	}

	class, err := iso7816.NewClass(parsed.header[0])
	if err != nil {
		return nil, err
	}
	secured, err := class.Secured()
	if err != nil {
		return nil, err
	}
	header := parsed.header
	header[0] = secured.Raw

	var objects []byte
	if len(parsed.data) > 0 {
		enc, err := encrypt(keys.Enc, pad(parsed.data))
		if err != nil {
			return nil, err
		}
		do87, err := dataObject(0x87, append([]byte{paddingIndicator}, enc...))
		if err != nil {
			return nil, err
		}
		objects = append(objects, do87...)
	}
	if parsed.le >= 0 {
		objects = append(objects, 0x97, 0x01, byte(parsed.le%iso7816.MaxShortLe))
	}

	counter := bits.PutUint64(ssc)
	macInput := append(counter[:], pad(header[:])...)
	macInput = append(macInput, objects...)
	checksum, err := retailMAC(keys.MAC, pad(macInput))
	if err != nil {
		return nil, err
	}

	objects = append(objects, 0x8E, macSize)
	objects = append(objects, checksum...)
	if len(objects) > iso7816.MaxShortLc {
		return nil, fmt.Errorf("protected body of %d bytes exceeds short Lc", len(objects))
	}

	out := make([]byte, 0, len(header)+len(objects)+2)
	out = append(out, header[:]...)
	out = append(out, byte(len(objects)))
	out = append(out, objects...)
	return append(out, 0x00), nil
}

// Unprotect verifies and decrypts a protected response and returns the plain
// response as Data || SW1 SW2.
func (Messenger) Unprotect(resp []byte, keys lds.SessionKeys, ssc uint64) ([]byte, error) {
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedResponse, len(resp))
	}
	body, trailer := resp[:len(resp)-2], resp[len(resp)-2:]
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: unprotected status %X", ErrMalformedResponse, trailer)
	}

	packets, err := bertlv.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if len(packets) == 0 {
		return nil, fmt.Errorf("%w: no data objects", ErrMalformedResponse)
	}
	last := packets[len(packets)-1]
	if strings.ToUpper(last.Tag) != tagChecksum || len(last.Value) != macSize {
		return nil, fmt.Errorf("%w: missing DO'8E'", ErrMalformedResponse)
	}

	counter := bits.PutUint64(ssc)
	macInput := append(counter[:], body[:len(body)-2-macSize]...)
	expected, err := retailMAC(keys.MAC, pad(macInput))
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(expected, last.Value) != 1 {
		return nil, ErrMAC
	}

	var data, status []byte
	for _, p := range packets[:len(packets)-1] {
		switch strings.ToUpper(p.Tag) {
		case tagEncryptedData:
			if len(p.Value) < 1 || p.Value[0] != paddingIndicator {
				return nil, fmt.Errorf("%w: DO'87' without padding indicator", ErrMalformedResponse)
			}
			plain, err := decrypt(keys.Enc, p.Value[1:])
			if err != nil {
				return nil, err
			}
			if data, err = unpad(plain); err != nil {
				return nil, err
			}
		case tagStatus:
			if len(p.Value) != 2 {
				return nil, fmt.Errorf("%w: DO'99' of %d bytes", ErrMalformedResponse, len(p.Value))
			}
			status = p.Value
		}
	}
	if status == nil {
		return nil, fmt.Errorf("%w: missing DO'99'", ErrMalformedResponse)
	}

	out := make([]byte, 0, len(data)+2)
	out = append(out, data...)
	return append(out, status...), nil
}

func dataObject(tag byte, value []byte) ([]byte, error) {
	length, err := tlv.EncodeLength(len(value))
	if err != nil {
		return nil, err
	}
	out := append([]byte{tag}, length...)
	return append(out, value...), nil
}
