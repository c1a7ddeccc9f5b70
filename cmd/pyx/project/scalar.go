package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Scalar is a JSON string or number, handled as text.
//
// Model ids, category ids and prices are sent by pyx.ai as numbers, but
// hand-written descriptors may have them as strings. Both are accepted.
// Scalar looking like a number is marshaled as a JSON number.
type Scalar string

func (s Scalar) String() string {
	return string(s)
}

func (s Scalar) IsZero() bool {
	return s == ""
}

// Int returns the value as int, if it is.
func (s Scalar) Int() (int, bool) {
	i, err := strconv.Atoi(string(s))
	return i, err == nil
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case len(b) != 0 && b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("neither string nor number: %s", b)
	}
	*s = Scalar(n.String())
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s != "" && json.Valid([]byte(s)) {
		var n json.Number
		if err := json.Unmarshal([]byte(s), &n); err == nil {
			return []byte(n.String()), nil
		}
	}
	return json.Marshal(string(s))
}
