package x86

import (
	"errors"
	"fmt"
)

// Bitness is the processor operating mode that governs the instruction grammar.
type Bitness int

const (
	Bits16 Bitness = 16
	Bits32 Bitness = 32
	Bits64 Bitness = 64
)

var ErrUnsupportedBitness = errors.New("unsupported bitness (must be 16, 32 or 64)")

func ParseBitness(n int) (Bitness, error) {
	b := Bitness(n)
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return b, nil
}

func (b Bitness) Validate() error {
	switch b {
	case Bits16, Bits32, Bits64:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedBitness, int(b))
}

func (b Bitness) String() string {
	return fmt.Sprintf("%d-bit", int(b))
}
