package snapshot

import (
	"errors"
	"fmt"
)

// ErrDeserialization matches every DeserializationError via errors.Is.
var ErrDeserialization = errors.New("snapshot: deserialization failed")

// DeserializationError reports malformed snapshot data. Restores that hit one
// must fail rather than fall back to fresh generation.
type DeserializationError struct {
	Kind string // what was being decoded: "coins", "player", "board", ...
	Err  error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("snapshot: malformed %s: %v", e.Kind, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool {
	return target == ErrDeserialization
}

func malformed(kind string, err error) error {
	return &DeserializationError{Kind: kind, Err: err}
}

func malformedf(kind, format string, args ...any) error {
	return &DeserializationError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
