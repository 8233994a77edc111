package stego

import (
	"io"
	"math/rand"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestMain(m *testing.M) {
	// Silence logs during tests
	log.Logger = log.Output(io.Discard)
	os.Exit(m.Run())
}

type sample struct {
	name    string
	code    []byte
	channel bool
	class   Class
	value   int
	flipped []byte
}

// 64-bit instructions with known channel behavior.
var samples64 = []sample{
	{"add rax, rbx", []byte{0x48, 0x01, 0xD8}, true, ClassDirection, 0, []byte{0x48, 0x03, 0xC3}},
	{"mov rax, r8", []byte{0x4C, 0x89, 0xC0}, true, ClassDirection, 0, []byte{0x49, 0x8B, 0xC0}},
	{"xor eax, eax", []byte{0x31, 0xC0}, true, ClassDirection, 0, []byte{0x33, 0xC0}},
	{"sub ecx, edx", []byte{0x2B, 0xCA}, true, ClassDirection, 1, []byte{0x29, 0xD1}},
	{"add al, ah", []byte{0x00, 0xE0}, true, ClassDirection, 0, []byte{0x02, 0xC4}},
	{"cmp rdi, rsi", []byte{0x48, 0x39, 0xF7}, true, ClassDirection, 0, []byte{0x48, 0x3B, 0xFE}},
	{"test eax, ebx", []byte{0x85, 0xD8}, true, ClassCommutative, 1, []byte{0x85, 0xC3}},
	{"xchg r9, rax", []byte{0x49, 0x87, 0xC1}, true, ClassCommutative, 0, []byte{0x4C, 0x87, 0xC8}},
	{"nop dword [rax]", []byte{0x0F, 0x1F, 0x00}, true, ClassHintNop, 0, []byte{0x0F, 0x1F, 0x01}},
	{"nop dword [rax+0]", []byte{0x0F, 0x1F, 0x40, 0x00}, true, ClassHintNop, 0, []byte{0x0F, 0x1F, 0x41, 0x00}},
	{"mov eax, cs:[rbx]", []byte{0x2E, 0x8B, 0x03}, true, ClassSegment, 0, []byte{0x3E, 0x8B, 0x03}},
	{"mov eax, ss:[rbx]", []byte{0x36, 0x8B, 0x03}, true, ClassSegment, 1, []byte{0x26, 0x8B, 0x03}},
	{"ds add rax, rbx", []byte{0x3E, 0x48, 0x01, 0xD8}, true, ClassDirection, 0, []byte{0x3E, 0x48, 0x03, 0xC3}},
	{"nop word [rax+rax+0]", []byte{0x66, 0x0F, 0x1F, 0x44, 0x00, 0x00}, false, 0, 0, nil},
	{"mov eax, fs:[rbx]", []byte{0x64, 0x8B, 0x03}, false, 0, 0, nil},
	{"ds je", []byte{0x3E, 0x74, 0x00}, false, 0, 0, nil},
	{"test eax, eax", []byte{0x85, 0xC0}, false, 0, 0, nil},
	{"add eax, [rbx]", []byte{0x03, 0x03}, false, 0, 0, nil},
	{"push rbp", []byte{0x55}, false, 0, 0, nil},
	{"nop", []byte{0x90}, false, 0, 0, nil},
	{"ret", []byte{0xC3}, false, 0, 0, nil},
	{"endbr64", []byte{0xF3, 0x0F, 0x1E, 0xFA}, false, 0, 0, nil},
	{"vpand xmm4, xmm14, xmm0", []byte{0xC5, 0x89, 0xDB, 0xE0}, false, 0, 0, nil},
	{"vpxor ymm1, ymm2, ymm3", []byte{0xC4, 0xE1, 0x6D, 0xEF, 0xCB}, false, 0, 0, nil},
	{"vmovdqa32 zmm0, [rax]", []byte{0x62, 0xF1, 0x7D, 0x48, 0x6F, 0x00}, false, 0, 0, nil},
	{"vzeroupper", []byte{0xC5, 0xF8, 0x77}, false, 0, 0, nil},
}

func channelSamples() []sample {
	var out []sample
	for _, s := range samples64 {
		if s.channel {
			out = append(out, s)
		}
	}
	return out
}

func fillerSamples() []sample {
	var out []sample
	for _, s := range samples64 {
		if !s.channel {
			out = append(out, s)
		}
	}
	return out
}

// buildCode concatenates n channel-bearing 64-bit instructions, with random
// filler instructions between them when rng is non-nil.
func buildCode(n int, rng *rand.Rand) []byte {
	channels := channelSamples()
	fillers := fillerSamples()

	var code []byte
	for i := 0; i < n; i++ {
		if rng != nil {
			for j := rng.Intn(3); j > 0; j-- {
				code = append(code, fillers[rng.Intn(len(fillers))].code...)
			}
			code = append(code, channels[rng.Intn(len(channels))].code...)
		} else {
			code = append(code, channels[i%len(channels)].code...)
		}
	}
	return code
}
