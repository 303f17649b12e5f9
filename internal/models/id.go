package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier issued by one of the backend services. Depending on the
// service it arrives as a JSON number or a JSON string, so both are accepted.
// Numeric identifiers are written back as numbers.
type ID string

// String returns the identifier as text.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// Numeric returns the identifier as an unsigned integer if it is one.
func (id ID) Numeric() (uint64, bool) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Less orders identifiers numerically when both are numeric, lexically otherwise.
func (id ID) Less(other ID) bool {
	a, aok := id.Numeric()
	b, bok := other.Numeric()
	if aok && bok {
		return a < b
	}
	return id < other
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Numeric(); ok {
		return []byte(strconv.FormatUint(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(n.String())
	return nil
}
