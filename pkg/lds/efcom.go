package lds

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/mrtd/pkg/tlv"
)

// EF.COM STRUCTURE (ICAO Doc 9303 part 10):
//
//	60 L                   application template
//	   5F01 04 "0107"      LDS version
//	   5F36 06 "040000"    Unicode version
//	   5C   L  61 75 ...   tag list of the data groups present
//
// DecodeDirectory walks the template byte by byte and only keeps the tag list.
// Tags whose first byte has the low five bits set (5F..) take a second byte.

// TagListTag is the inner tag of the data group tag list.
const TagListTag = 0x5C

// DirectoryEntry is one data group listed in EF.COM.
type DirectoryEntry struct {
	Tag  byte
	Name string
}

type directoryState int

const (
	seekOuterLength directoryState = iota
	seekInnerTag
	seekTagSecondByte
	seekInnerLength
	collectingOrSkipping
)

// DecodeDirectory returns the data groups listed in an EF.COM file, in file
// order. Only the short form of the outer length is supported.
func DecodeDirectory(data []byte) ([]DirectoryEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: EF.COM of %d bytes", ErrFormat, len(data))
	}

	var (
		state      = seekOuterLength
		end        = len(data)
		remaining  int
		collecting bool
		entries    []DirectoryEntry
	)

	// Byte 0 is the outer tag.
	for i := 1; i < end; i++ {
		b := data[i]

		switch state {
		case seekOuterLength:
			if b > 0x7F {
				return nil, fmt.Errorf("%w: EF.COM outer length form 0x%02X not supported", ErrFormat, b)
			}
			if i+1+int(b) > len(data) {
				return nil, fmt.Errorf("%w: EF.COM declares %d bytes, %d present", ErrFormat, b, len(data)-i-1)
			}
			end = i + 1 + int(b)
			state = seekInnerTag

		case seekInnerTag:
			collecting = b == TagListTag
			if b&0x1F == 0x1F {
				state = seekTagSecondByte
			} else {
				state = seekInnerLength
			}

		case seekTagSecondByte:
			state = seekInnerLength

		case seekInnerLength:
			if b > 0x7F {
				return nil, fmt.Errorf("%w: EF.COM inner length form 0x%02X at offset %d", ErrFormat, b, i)
			}
			remaining = int(b)
			state = collectingOrSkipping
			if remaining == 0 {
				state = seekInnerTag
			}

		case collectingOrSkipping:
			if collecting {
				entries = append(entries, DirectoryEntry{Tag: b, Name: TagName(b)})
			}
			remaining--
			if remaining == 0 {
				state = seekInnerTag
			}
		}
	}

	if state != seekInnerTag {
		return nil, fmt.Errorf("%w: EF.COM truncated inside an element", ErrFormat)
	}
	return entries, nil
}

// COM is the decoded EF.COM header.
type COM struct {
	LDSVersion     []byte       `tlv:"5F01" fmt:"ascii"`
	UnicodeVersion []byte       `tlv:"5F36" fmt:"ascii"`
	TagList        []byte       `tlv:"5C" fmt:"list"`
	Unknown        []bertlv.TLV `tlv:",unknown"`
	Entries        []DirectoryEntry
}

// ParseCOM decodes a full EF.COM file, header elements and directory.
func ParseCOM(data []byte) (*COM, error) {
	entries, err := DecodeDirectory(data)
	if err != nil {
		return nil, err
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: EF.COM: %w", ErrFormat, err)
	}
	if len(packets) == 0 || !strings.EqualFold(packets[0].Tag, "60") {
		return nil, fmt.Errorf("%w: EF.COM does not start with template 60", ErrFormat)
	}

	com := &COM{Entries: entries}
	if err := tlv.UnmarshalFromPackets(packets[0].TLVs, com); err != nil {
		return nil, fmt.Errorf("%w: EF.COM: %w", ErrFormat, err)
	}
	return com, nil
}

// Version returns the LDS version as "major.minor", e.g. "01.07".
func (c *COM) Version() string {
	if len(c.LDSVersion) != 4 {
		return tlv.MakeSafeASCII(c.LDSVersion)
	}
	return fmt.Sprintf("%s.%s", c.LDSVersion[:2], c.LDSVersion[2:])
}

// Describe renders the header fields and the directory.
func (c *COM) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EF.COM ===")
	tlv.WriteStructFields(&sb, "COM", c)

	sb.WriteString(fmt.Sprintf("\n    - Data groups: %d", len(c.Entries)))
	for i, e := range c.Entries {
		sb.WriteString(fmt.Sprintf("\n      [%d] %02X %s", i+1, e.Tag, e.Name))
	}
	return sb.String()
}
