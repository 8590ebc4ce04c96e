package lds

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/mrtd/pkg/tlv"
)

func TestDecodeDirectory(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []DirectoryEntry
	}{
		{
			name:  "ICAO worked example",
			input: icaoCOM,
			expected: []DirectoryEntry{
				{Tag: 0x61, Name: "EF_DG1"},
				{Tag: 0x75, Name: "EF_DG2"},
			},
		},
		{
			name:  "Full LDS1 set",
			input: tlv.Hex("60 0D 5F01 04 30313037 5C 04 61 75 6E 77"),
			expected: []DirectoryEntry{
				{Tag: 0x61, Name: "EF_DG1"},
				{Tag: 0x75, Name: "EF_DG2"},
				{Tag: 0x6E, Name: "EF_DG14"},
				{Tag: 0x77, Name: "EF_SOD"},
			},
		},
		{
			name:  "Unknown tags in the list",
			input: tlv.Hex("60 05 5C 03 62 64 FF"),
			expected: []DirectoryEntry{
				{Tag: 0x62, Name: NotDefined},
				{Tag: 0x64, Name: NotDefined},
				{Tag: 0xFF, Name: NotDefined},
			},
		},
		{
			name:     "Unknown inner element skipped",
			input:    tlv.Hex("60 08 53 02 5C 61 5C 02 63 76"),
			expected: []DirectoryEntry{{Tag: 0x63, Name: "EF_DG3"}, {Tag: 0x76, Name: "EF_DG4"}},
		},
		{
			name:     "Bounded by outer length",
			input:    tlv.Hex("60 04 5C 02 61 75 5C 01 63"),
			expected: []DirectoryEntry{{Tag: 0x61, Name: "EF_DG1"}, {Tag: 0x75, Name: "EF_DG2"}},
		},
		{
			name:     "Empty tag list",
			input:    tlv.Hex("60 02 5C 00"),
			expected: nil,
		},
		{
			name:     "No tag list",
			input:    tlv.Hex("60 07 5F01 04 30313037"),
			expected: nil,
		},
		{
			name:     "Empty template",
			input:    tlv.Hex("60 00"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDirectory(tt.input)
			if err != nil {
				t.Fatalf("DecodeDirectory() error = %v", err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("DecodeDirectory() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDirectory_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"Empty", nil},
		{"Tag only", tlv.Hex("60")},
		{"Outer long form", tlv.Hex("60 81 04 5C 02 61 75")},
		{"Outer length beyond data", tlv.Hex("60 14 5F01 04 3031")},
		{"Truncated inside the tag list", tlv.Hex("60 05 5C 05 61 75 63")},
		{"Truncated after a two-byte tag", tlv.Hex("60 02 5F 01")},
		{"Truncated before a length", tlv.Hex("60 01 5C")},
		{"Inner long form", tlv.Hex("60 04 5C 81 01 61")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDirectory(tt.input)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("DecodeDirectory() error = %v, want ErrFormat", err)
			}
			if got != nil {
				t.Errorf("DecodeDirectory() returned %v on error", got)
			}
		})
	}
}

func TestParseCOM(t *testing.T) {
	com, err := ParseCOM(icaoCOM)
	if err != nil {
		t.Fatalf("ParseCOM() error = %v", err)
	}

	want := &COM{
		LDSVersion:     []byte("0106"),
		UnicodeVersion: []byte("040000"),
		TagList:        tlv.Hex("61 75"),
		Entries: []DirectoryEntry{
			{Tag: 0x61, Name: "EF_DG1"},
			{Tag: 0x75, Name: "EF_DG2"},
		},
	}
	if diff := cmp.Diff(want, com); diff != "" {
		t.Errorf("ParseCOM() mismatch (-want +got):\n%s", diff)
	}

	if got := com.Version(); got != "01.06" {
		t.Errorf("Version() = %q, want %q", got, "01.06")
	}
}

func TestParseCOM_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"Truncated", tlv.Hex("60 14 5F01 04 30313036")},
		{"Wrong template", tlv.Hex("61 04 5C 02 61 75")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCOM(tt.input); !errors.Is(err, ErrFormat) {
				t.Errorf("ParseCOM() error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestCOM_Describe(t *testing.T) {
	com, err := ParseCOM(icaoCOM)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"=== EF.COM ===",
		`    - COM.LDSVersion (5F01): 30313036 ("0106")`,
		`    - COM.UnicodeVersion (5F36): 303430303030 ("040000")`,
		"    - COM.TagList (5C): 61 75",
		"    - Data groups: 2",
		"      [1] 61 EF_DG1",
		"      [2] 75 EF_DG2",
	}
	if diff := cmp.Diff(want, strings.Split(com.Describe(), "\n")); diff != "" {
		t.Errorf("Describe() mismatch (-want +got):\n%s", diff)
	}
}
