package iso7816

import (
	"fmt"

	"github.com/gregLibert/mrtd/pkg/bits"
)

// Class Byte (CLA) Structure according to ISO/IEC 7816-4.
//
// The CLA byte conveys secure messaging (SM), command chaining and the
// logical channel.
//
// Bit 8: Proprietary (1) or Interindustry (0).
// Bit 7: Type of Interindustry (0=First, 1=Further).
// Bit 5: Command Chaining (0=Last/Only, 1=More follow).
//
// 1. First Interindustry Class (00xx xxxx):
//    - Bits 4-3: Secure Messaging (2 bits, 4 states).
//    - Bits 2-1: Logical Channel number (0-3).
//
// 2. Further Interindustry Class (01xx xxxx):
//    - Bit 6: Secure Messaging (1 bit: No SM or SM active).
//    - Bits 4-1: Logical Channel number minus 4 (channels 4-19).
//
// eMRTD commands travel on channel 0. Plain commands use CLA '00'; once BAC
// or PACE is established every command is sent with CLA '0C' (bits 4-3 = 11,
// header authenticated).

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary secure messaging format (First Interindustry only).
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates SM according to ISO, where the header is not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates SM according to ISO, where the header is authenticated (First Interindustry only).
	SMHeaderAuth SecureMessaging = 3
)

// Class represents the parsed ISO 7816-4 Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8 // Logical channel number (0-19)
}

// PlainClass is CLA '00': channel 0, no SM, no chaining.
var PlainClass = Class{}

// NewClass creates a Class object by decoding a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	c.IsChained = bits.IsSet(cla, 5)

	if !bits.IsSet(cla, 7) {
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
		c.Channel = bits.GetRange(cla, 2, 1)
		return c, nil
	}

	if bits.IsSet(cla, 6) {
		c.SecureMessaging = SMHeaderNoProc
	}
	c.Channel = bits.GetRange(cla, 4, 1) + 4
	return c, nil
}

// NewInterindustryClass creates a Class object from parameters.
// It automatically selects First or Further interindustry encoding based on the channel number.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > 19 {
		return Class{}, fmt.Errorf("channel %d out of range (max 19)", channel)
	}

	// Further Interindustry (Ch 4-19) only supports 1 bit for SM (No SM vs ISO SM)
	if channel >= 4 && (sm == SMProprietary || sm == SMHeaderAuth) {
		return Class{}, fmt.Errorf("SM indicator %d not supported for further interindustry range (ch 4-19)", sm)
	}

	c := Class{
		IsChained:       isChained,
		SecureMessaging: sm,
		Channel:         channel,
	}

	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw

	return c, nil
}

// Secured returns a copy of c flagged for ISO secure messaging with an
// authenticated header, the form required for BAC protected commands.
func (c Class) Secured() (Class, error) {
	if c.IsProprietary {
		return Class{}, fmt.Errorf("cannot apply ISO secure messaging to proprietary class 0x%02X", c.Raw)
	}
	return NewInterindustryClass(c.IsChained, SMHeaderAuth, c.Channel)
}

// Encode converts the Class object back to its byte representation.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}

	if c.Channel <= 3 {
		res |= byte(c.SecureMessaging) << 2
		res |= c.Channel
		return res, nil
	}

	res = bits.Set(res, 7)
	if c.SecureMessaging != SMNone {
		res = bits.Set(res, 6)
	}
	res |= c.Channel - 4

	return res, nil
}

// Verbose returns a human-readable description of the CLA byte configuration.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	rangeName := "First Interindustry (Ch 0-3)"
	if c.Channel >= 4 {
		rangeName = "Further Interindustry (Ch 4-19)"
	}

	smDesc := "Unknown"
	switch c.SecureMessaging {
	case SMNone:
		smDesc = "None"
	case SMProprietary:
		smDesc = "Proprietary"
	case SMHeaderNoProc:
		smDesc = "ISO (Header not processed)"
	case SMHeaderAuth:
		smDesc = "ISO (Header authenticated)"
	}

	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}

	return fmt.Sprintf(
		"Range: %s\nChaining: %s\nSecure Messaging: %s\nLogical Channel: %d",
		rangeName, chaining, smDesc, c.Channel,
	)
}
