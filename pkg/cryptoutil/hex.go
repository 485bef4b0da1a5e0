package cryptoutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexEncode renders raw bytes as a "0x"-prefixed lowercase hex string.
func HexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// HexDecode parses a "0x"-prefixed (or bare) hex string into raw bytes.
// Round-trips with HexEncode for arbitrary byte strings, including the
// empty one ("0x" decodes to []byte{}).
func HexDecode(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return []byte{}, nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}

// MustHexDecode is HexDecode for callers holding a value already known to
// be well-formed (constant selectors, test vectors).
func MustHexDecode(s string) []byte {
	b, err := HexDecode(s)
	if err != nil {
		panic(err)
	}
	return b
}
