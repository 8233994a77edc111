package stego

import (
	"bytes"
	"testing"
)

func TestApply(t *testing.T) {
	original := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	out := Apply(original, []Rewrite{
		{Start: 1, End: 3, Bytes: []byte{0xAA, 0xBB}},
		{Start: 5, End: 6, Bytes: []byte{0xCC}},
	})

	want := []byte{0x00, 0xAA, 0xBB, 0x03, 0x04, 0xCC}
	if !bytes.Equal(out, want) {
		t.Errorf("Apply = % x, want % x", out, want)
	}
	if !bytes.Equal(original, []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}) {
		t.Error("Apply modified the original buffer")
	}
}

func TestApplyNoRewrites(t *testing.T) {
	original := []byte{0x90, 0xC3}
	out := Apply(original, nil)
	if !bytes.Equal(out, original) {
		t.Errorf("Apply = % x, want % x", out, original)
	}
	out[0] = 0xCC
	if original[0] != 0x90 {
		t.Error("Apply returned the original buffer instead of a copy")
	}
}

func TestApplyPanics(t *testing.T) {
	tests := []struct {
		name string
		rw   Rewrite
	}{
		{"length mismatch", Rewrite{Start: 0, End: 2, Bytes: []byte{0x01}}},
		{"span past end", Rewrite{Start: 3, End: 5, Bytes: []byte{0x01, 0x02}}},
		{"negative start", Rewrite{Start: -1, End: 1, Bytes: []byte{0x01, 0x02}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected Apply to panic")
				}
			}()
			Apply([]byte{0x00, 0x01, 0x02, 0x03}, []Rewrite{tt.rw})
		})
	}
}
