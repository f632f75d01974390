package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID is an identifier that the backend may send as a JSON string or a
// JSON number. It is always held in string form.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")), bytes.Equal(data, []byte("true")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		raw := n.String()
		// 12345.0 and 1.2345e4 key the same record as 12345.
		if strings.ContainsAny(raw, ".eE") {
			f, err := n.Float64()
			if err != nil {
				return err
			}
			raw = strconv.FormatFloat(f, 'f', -1, 64)
		}
		if raw == "0" || raw == "-0" {
			*id = ""
			return nil
		}
		*id = FlexID(raw)
		return nil
	}
}

func (id FlexID) String() string { return string(id) }

// Empty reports whether the identifier is missing or falsy.
func (id FlexID) Empty() bool { return id == "" }

// FirstID returns the first non-empty identifier.
func FirstID(ids ...FlexID) FlexID {
	for _, id := range ids {
		if !id.Empty() {
			return id
		}
	}
	return ""
}
