package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex builds a byte slice from hex fragments such as "00 A4 02 0C".
// Whitespace between digits is ignored. It panics on malformed input and is
// meant for fixtures and constant tables.
func Hex(parts ...string) []byte {
	clean := strings.Join(strings.Fields(strings.Join(parts, " ")), "")

	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", clean, err))
	}
	return data
}
