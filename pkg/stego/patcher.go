package stego

import "fmt"

// Rewrite replaces original[Start:End] with Bytes.
type Rewrite struct {
	Start int
	End   int
	Bytes []byte
}

// Apply copies original once and overwrites each rewritten span. A rewrite
// whose length differs from its span is a bug in a redundancy class, so it
// panics rather than returning an error.
func Apply(original []byte, rewrites []Rewrite) []byte {
	out := make([]byte, len(original))
	copy(out, original)

	for _, rw := range rewrites {
		if rw.Start < 0 || rw.End > len(out) || rw.Start > rw.End {
			panic(fmt.Sprintf("stego: rewrite span [%d,%d) outside buffer of %d bytes", rw.Start, rw.End, len(out)))
		}
		if len(rw.Bytes) != rw.End-rw.Start {
			panic(fmt.Sprintf("stego: rewrite at %#x is %d bytes, span is %d", rw.Start, len(rw.Bytes), rw.End-rw.Start))
		}
		copy(out[rw.Start:rw.End], rw.Bytes)
	}

	return out
}
