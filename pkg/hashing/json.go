package hashing

import (
	"encoding/hex"
	"fmt"
)

// MarshalJSON renders a Hash as a 0x-prefixed, 64-hex-digit, lowercase
// string, per the canonical JSON schema (design §5).
func (h Hash) MarshalJSON() ([]byte, error) {
	return marshalHex(h[:])
}

// UnmarshalJSON parses a 0x-prefixed, 64-hex-digit string into a Hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	b, err := unmarshalHex(data, len(h))
	if err != nil {
		return fmt.Errorf("hashing: Hash: %w", err)
	}
	copy(h[:], b)
	return nil
}

// String renders a Hash the same way MarshalJSON does, for logging.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalJSON renders a Selector as a 0x-prefixed, 8-hex-digit, lowercase
// string, per the canonical JSON schema (design §5).
func (s Selector) MarshalJSON() ([]byte, error) {
	return marshalHex(s[:])
}

// UnmarshalJSON parses a 0x-prefixed, 8-hex-digit string into a Selector.
func (s *Selector) UnmarshalJSON(data []byte) error {
	b, err := unmarshalHex(data, len(s))
	if err != nil {
		return fmt.Errorf("hashing: Selector: %w", err)
	}
	copy(s[:], b)
	return nil
}

// String renders a Selector the same way MarshalJSON does, for logging.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func marshalHex(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b)*2+4)
	out = append(out, '"', '0', 'x')
	out = append(out, []byte(hex.EncodeToString(b))...)
	out = append(out, '"')
	return out, nil
}

func unmarshalHex(data []byte, wantLen int) ([]byte, error) {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return nil, fmt.Errorf("not a JSON string: %s", s)
	}
	s = s[1 : len(s)-1]
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(b))
	}
	return b, nil
}
