package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields inspects a struct and writes its fields to the strings.Builder.
// It joins lines with newlines but DOES NOT add a trailing newline, preventing artifacts in strings.Split.
// If the builder is not empty, it prepends a newline to separate this block from previous content.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	tlvSlice := reflect.TypeOf([]bertlv.TLV{})
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)

		switch {
		case isByteSlice(field):
			if field.Len() == 0 {
				continue
			}
			name := sf.Name
			if tag := sf.Tag.Get("tlv"); tag != "" {
				name = fmt.Sprintf("%s (%s)", name, tag)
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, formatByteValue(field.Bytes(), sf.Tag.Get("fmt"))))

		case field.Type() == tlvSlice:
			for _, t := range field.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %s", prefix, t.Tag, strings.ToUpper(hex.EncodeToString(t.Value))))
			}
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func formatByteValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var integer int
		for _, b := range data {
			integer = (integer << 8) | int(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, integer)
	case "list":
		return fmt.Sprintf("% X", data)
	default:
		return strings.ToUpper(hex.EncodeToString(data))
	}
}

// MakeSafeASCII replaces every non-printable byte with a dot.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
