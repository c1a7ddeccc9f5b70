package base64marshall

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode"
)

// Bytes is a byte slice that will be encoded as base64 when marshaled to JSON.
//
// On unmarshal, whitespaces (including line breaks) in the payload are ignored
// and missing padding is tolerated.
type Bytes []byte

// New creates a new Bytes from a raw byte slice.
func New(b []byte) Bytes {
	return Bytes(b)
}

// Bytes returns the byte slice underlying the Bytes.
func (b Bytes) Bytes() []byte {
	return []byte(b)
}

// String returns the base64 encoded string of the Bytes.
func (b Bytes) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// MarshalJSON implements the json.Marshaler interface.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	decoded, err := Decode(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// Decode decodes base64 text in standard or URL-safe alphabet.
func Decode(s string) (Bytes, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, "=")

	enc := base64.RawStdEncoding
	if strings.ContainsAny(s, "-_") {
		enc = base64.RawURLEncoding
	}
	decoded, err := enc.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return New(decoded), nil
}
