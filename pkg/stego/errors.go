package stego

import (
	"errors"
	"fmt"
)

// CapacityExceededError reports a payload that does not fit. Both counts are
// in bits and include the length header.
type CapacityExceededError struct {
	Requested int64
	Available int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("binary is not large enough to hide the payload: need %d bits, have %d", e.Requested, e.Available)
}

var ErrTruncatedPayload = errors.New("declared payload length exceeds the binary's capacity")
