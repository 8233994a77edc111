package x86

import (
	"errors"
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestDecodeExtendedLengths(t *testing.T) {
	tests := []struct {
		name    string
		code    []byte
		bitness Bitness
		enc     Encoding
		opMap   OpcodeMap
		opcode  int
		modrm   int
	}{
		{"endbr64", []byte{0xF3, 0x0F, 0x1E, 0xFA}, Bits64, EncodingEndbr64, Map0F, 1, 3},
		{"endbr32", []byte{0xF3, 0x0F, 0x1E, 0xFB}, Bits32, EncodingEndbr32, Map0F, 1, 3},
		// vpand xmm4, xmm14, xmm0
		{"vex2 register", []byte{0xC5, 0x89, 0xDB, 0xE0}, Bits64, EncodingVEX, Map0F, 2, 3},
		// vzeroupper
		{"vex2 no modrm", []byte{0xC5, 0xF8, 0x77}, Bits64, EncodingVEX, Map0F, 2, -1},
		// vmovdqu xmm0, [rip+0]
		{"vex2 rip relative", []byte{0xC5, 0xFA, 0x6F, 0x05, 0x00, 0x00, 0x00, 0x00}, Bits64, EncodingVEX, Map0F, 2, 3},
		// vpshufd xmm0, xmm1, 0x1b
		{"vex2 imm8", []byte{0xC5, 0xF9, 0x70, 0xC1, 0x1B}, Bits64, EncodingVEX, Map0F, 2, 3},
		// vpalignr xmm0, xmm0, [rsp+8], 3
		{"vex3 sib disp8 imm8", []byte{0xC4, 0xE3, 0x79, 0x0F, 0x44, 0x24, 0x08, 0x03}, Bits64, EncodingVEX, Map0F3A, 3, 4},
		// vpshufb ymm0, ymm1, [rax+0x100]
		{"vex3 disp32", []byte{0xC4, 0xE2, 0x75, 0x00, 0x80, 0x00, 0x01, 0x00, 0x00}, Bits64, EncodingVEX, Map0F38, 3, 4},
		// es vmovdqa xmm0, xmm1
		{"segment prefixed vex", []byte{0x26, 0xC5, 0xF9, 0x6F, 0xC1}, Bits64, EncodingVEX, Map0F, 3, 4},
		// vmovdqa32 zmm0, [rax]
		{"evex memory", []byte{0x62, 0xF1, 0x7D, 0x48, 0x6F, 0x00}, Bits64, EncodingEVEX, Map0F, 4, 5},
		// vmovdqa32 zmm0, [rax+0x40]
		{"evex disp8", []byte{0x62, 0xF1, 0x7D, 0x48, 0x6F, 0x40, 0x01}, Bits64, EncodingEVEX, Map0F, 4, 5},
		// vpshufd zmm0, zmm1, 0x1b
		{"evex imm8", []byte{0x62, 0xF1, 0x7D, 0x48, 0x70, 0xC1, 0x1B}, Bits64, EncodingEVEX, Map0F, 4, 5},
		// vmovdqa xmm0, xmm1
		{"vex in 32-bit mode", []byte{0xC5, 0xF9, 0x6F, 0xC1}, Bits32, EncodingVEX, Map0F, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A trailing nop checks that decoding resumes at the right offset.
			code := append(append([]byte(nil), tt.code...), 0x90)

			insts, err := Decode(code, tt.bitness)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(insts) != 2 {
				t.Fatalf("got %d instructions, want 2", len(insts))
			}

			inst := insts[0]
			if inst.Len != len(tt.code) {
				t.Errorf("length = %d, want %d", inst.Len, len(tt.code))
			}
			if inst.Encoding != tt.enc {
				t.Errorf("encoding = %v, want %v", inst.Encoding, tt.enc)
			}
			if inst.Layout.Map != tt.opMap || inst.Layout.Opcode != tt.opcode || inst.Layout.ModRM != tt.modrm {
				t.Errorf("layout = %+v", inst.Layout)
			}
			if inst.Syntax() != tt.enc.String() {
				t.Errorf("Syntax() = %q, want %q", inst.Syntax(), tt.enc.String())
			}
			if inst.IsControlTransfer() {
				t.Error("extended instruction reported as a control transfer")
			}
			if insts[1].Offset != len(tt.code) || insts[1].Inst.Op != x86asm.NOP {
				t.Errorf("trailing nop decoded as %+v", insts[1])
			}
		})
	}
}

func TestDecodeLegacyBytesOutside64BitMode(t *testing.T) {
	// lds eax, [esi]: C5 followed by a memory ModRM is not VEX in 32-bit mode.
	insts, err := Decode([]byte{0xC5, 0x06}, Bits32)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(insts) != 1 || insts[0].Encoding != EncodingLegacy || insts[0].Len != 2 {
		t.Errorf("got %+v, want a single 2-byte legacy instruction", insts)
	}
}

func TestDecodeInvalidIsFatalAtItsStart(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		// x86asm answers these with a prefix pseudo-instruction
		{"prefixed undefined opcode", []byte{0x66, 0x0F, 0x04}},
		{"rdsspd is not endbr", []byte{0xF3, 0x0F, 0x1E, 0xC8}},
		{"vex behind an operand size prefix", []byte{0x66, 0xC5, 0x89, 0xDB, 0xE0}},
		{"reserved vex map", []byte{0xC4, 0xE0, 0x79, 0x00, 0xC0}},
		{"reserved evex map", []byte{0x62, 0xF4, 0x7D, 0x48, 0x6F, 0xC0}},
		{"evex fixed bit clear", []byte{0x62, 0xF1, 0x79, 0x48, 0x6F, 0xC0}},
		{"truncated vex", []byte{0xC5, 0xF8}},
		{"vex missing immediate", []byte{0xC4, 0xE3, 0x79, 0x0F, 0xC0}},
		{"vex missing displacement", []byte{0xC5, 0xFA, 0x6F, 0x05, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := append([]byte{0x90}, tt.code...)
			_, err := Decode(code, Bits64)

			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if decErr.Offset != 1 {
				t.Errorf("DecodeError offset = %d, want 1", decErr.Offset)
			}
		})
	}
}

func TestDecodeRealisticFragment(t *testing.T) {
	code := []byte{
		0xF3, 0x0F, 0x1E, 0xFA, // endbr64
		0x55,             // push rbp
		0x48, 0x89, 0xE5, // mov rbp, rsp
		0xC5, 0xF9, 0xEF, 0xC0, // vpxor xmm0, xmm0, xmm0
		0xC5, 0xFA, 0x7F, 0x07, // vmovdqu [rdi], xmm0
		0x62, 0xF1, 0x7D, 0x48, 0x7F, 0x47, 0x01, // vmovdqa32 [rdi+0x40], zmm0
		0x31, 0xC0, // xor eax, eax
		0xC5, 0xF8, 0x77, // vzeroupper
		0x5D, // pop rbp
		0xC3, // ret
	}
	wantLens := []int{4, 1, 3, 4, 4, 7, 2, 3, 1, 1}

	insts, err := Decode(code, Bits64)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(insts) != len(wantLens) {
		t.Fatalf("got %d instructions, want %d", len(insts), len(wantLens))
	}
	for i, inst := range insts {
		if inst.Len != wantLens[i] {
			t.Errorf("instruction %d (%s) has length %d, want %d", i, inst.Syntax(), inst.Len, wantLens[i])
		}
	}
}

func TestModRMLength(t *testing.T) {
	tests := []struct {
		name     string
		b        []byte
		addrSize int
		want     int
	}{
		{"register", []byte{0xC0}, 64, 1},
		{"indirect", []byte{0x00}, 64, 1},
		{"rip relative", []byte{0x05, 0, 0, 0, 0}, 64, 5},
		{"sib", []byte{0x04, 0x24}, 64, 2},
		{"sib no base", []byte{0x04, 0x25, 0, 0, 0, 0}, 64, 6},
		{"disp8", []byte{0x40, 0}, 32, 2},
		{"sib disp32", []byte{0x84, 0x24, 0, 0, 0, 0}, 32, 6},
		{"16-bit direct", []byte{0x06, 0, 0}, 16, 3},
		{"16-bit disp8", []byte{0x40, 0}, 16, 2},
		{"16-bit no sib", []byte{0x04}, 16, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := modRMLength(tt.b, tt.addrSize)
			if err != nil {
				t.Fatalf("modRMLength failed: %v", err)
			}
			if n != tt.want {
				t.Errorf("modRMLength = %d, want %d", n, tt.want)
			}
		})
	}

	if _, err := modRMLength([]byte{0x80, 0x00}, 64); !errors.Is(err, errTruncated) {
		t.Errorf("expected errTruncated for a short displacement, got %v", err)
	}
}

func TestAddressSize(t *testing.T) {
	tests := []struct {
		prefixes []byte
		bitness  Bitness
		want     int
	}{
		{nil, Bits16, 16},
		{[]byte{0x67}, Bits16, 32},
		{nil, Bits32, 32},
		{[]byte{0x2E, 0x67}, Bits32, 16},
		{nil, Bits64, 64},
		{[]byte{0x67}, Bits64, 32},
	}
	for _, tt := range tests {
		if got := AddressSize(tt.prefixes, tt.bitness); got != tt.want {
			t.Errorf("AddressSize(% x, %v) = %d, want %d", tt.prefixes, tt.bitness, got, tt.want)
		}
	}
}
