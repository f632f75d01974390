package models

import "fmt"

// DecodeError reports a backend record that failed validation at the
// deserialization boundary.
type DecodeError struct {
	Kind   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func errMissingID(kind string) error {
	return &DecodeError{Kind: kind, Reason: "missing id"}
}
