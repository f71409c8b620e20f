package movecodec

import (
	"errors"
	"fmt"
)

// ErrEncoding matches every *EncodingError via errors.Is.
var ErrEncoding = errors.New("movecodec: encoding error")

// EncodingError reports a move outside the grammar or an unmapped code point.
type EncodingError struct {
	Input  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("movecodec: %s: %q", e.Reason, e.Input)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

func encErr(input, reason string) error {
	return &EncodingError{Input: input, Reason: reason}
}
