// Package tlv maps BER-TLV data into Go structures using struct tags and
// provides the BER-TLV length codec used by the LDS file reader.
//
// Struct fields are bound to a tag with `tlv:"5F01"`. A field tagged
// `tlv:",unknown"` (or named Unknown) of type []bertlv.TLV collects every
// packet no other field claimed. The optional `fmt:"ascii"` or `fmt:"int"`
// tag only affects reports produced by WriteStructFields.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps already decoded packets onto target.
// A slice field (other than []byte) receives one element per matching packet.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	consumed := make([]bool, len(packets))
	var unknown reflect.Value

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag, isUnknown := fieldTag(t.Field(i))
		if isUnknown {
			unknown = field
			continue
		}
		if tag == "" {
			continue
		}

		for idx, packet := range packets {
			if normalizeTag(packet.Tag) != tag {
				continue
			}
			if err := mapPacketToField(packet, field); err != nil {
				return fmt.Errorf("tag %s: %w", tag, err)
			}
			consumed[idx] = true
		}
	}

	if !unknown.IsValid() || !unknown.CanSet() {
		return nil
	}

	var leftovers []bertlv.TLV
	for idx, packet := range packets {
		if !consumed[idx] {
			leftovers = append(leftovers, packet)
		}
	}
	if len(leftovers) > 0 {
		unknown.Set(reflect.ValueOf(leftovers))
	}
	return nil
}

// fieldTag returns the normalized tag bound to a struct field and whether the
// field is the catch-all for unclaimed packets.
func fieldTag(sf reflect.StructField) (string, bool) {
	cfg := sf.Tag.Get("tlv")
	if cfg == ",unknown" || sf.Name == "Unknown" {
		return "", true
	}
	if cfg == "" {
		return "", false
	}
	return normalizeTag(strings.Split(cfg, ",")[0]), false
}

func normalizeTag(tag string) string {
	return strings.ToUpper(tag)
}

func mapPacketToField(packet bertlv.TLV, field reflect.Value) error {
	if field.Kind() == reflect.Slice && !isByteSlice(field) {
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := decodeToValue(packet, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil
	}
	return decodeToValue(packet, field)
}

func decodeToValue(packet bertlv.TLV, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			raw, err := rawValue(packet)
			if err != nil {
				return err
			}
			return u.UnmarshalTLV(raw)
		}
	}

	switch {
	case isByteSlice(field):
		raw, err := rawValue(packet)
		if err != nil {
			return err
		}
		field.SetBytes(raw)

	case field.Kind() == reflect.String:
		field.SetString(hex.EncodeToString(packet.Value))

	case field.Kind() == reflect.Struct:
		return decodeNested(packet, field.Addr().Interface())

	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return decodeNested(packet, field.Interface())
	}
	return nil
}

func decodeNested(packet bertlv.TLV, target interface{}) error {
	if len(packet.TLVs) > 0 {
		return UnmarshalFromPackets(packet.TLVs, target)
	}
	return Unmarshal(packet.Value, target)
}

// rawValue returns the value bytes of a packet, re-encoding children for
// constructed packets.
func rawValue(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) > 0 {
		return bertlv.Encode(p.TLVs)
	}
	return p.Value, nil
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
