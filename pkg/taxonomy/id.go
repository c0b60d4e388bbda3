package taxonomy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque node identifier. Numeric JSON ids are kept as their
// decimal text so that 42 and "42" name the same node.
type ID string

// IsZero reports whether the id is missing.
func (id ID) IsZero() bool {
	return id == ""
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts JSON strings and numbers. Any other JSON value
// (null, bool, object) decodes to the zero id so a malformed node can still
// be rendered by name.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*id = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(n.String())
	default:
		*id = ""
	}
	return nil
}

// MarshalJSON emits integer ids of up to 15 digits as JSON numbers and
// everything else as strings. Longer integers are emitted as strings even
// when they arrived as numbers, since a float64 cannot hold them exactly;
// the id itself is unchanged, so 1234567890123456 and "1234567890123456"
// still name the same node.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.isInteger() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalTOML implements toml.Unmarshaler.
func (id *ID) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*id = ID(val)
	case int64:
		*id = ID(strconv.FormatInt(val, 10))
	case float64:
		*id = ID(strconv.FormatFloat(val, 'f', -1, 64))
	default:
		*id = ""
	}
	return nil
}

// isInteger reports whether the id is a canonical base-10 integer that fits
// in a float64 mantissa, so it survives a round trip through JavaScript.
func (id ID) isInteger() bool {
	s := string(id)
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" || len(s) > 15 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return id != "-0"
}

// Less orders ids for deterministic output: integers numerically and before
// any non-integer id, non-integers lexically.
func Less(a, b ID) bool {
	ai, bi := a.isInteger(), b.isInteger()
	switch {
	case ai && bi:
		x, _ := strconv.ParseInt(string(a), 10, 64)
		y, _ := strconv.ParseInt(string(b), 10, 64)
		return x < y
	case ai != bi:
		return ai
	default:
		return a < b
	}
}
