package x86

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// DecodeError reports a byte sequence with no valid instruction encoding.
// Offset is relative to the start of the decoded buffer.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("no valid instruction at offset %#x: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	errEmptyInstruction = errors.New("decoder consumed no bytes")
	errUnsizedVEX       = errors.New("VEX instruction not sized by the extended decoder")
)

// Instruction is one decoded instruction. It holds offsets into the buffer it
// was decoded from rather than a reference to it. Inst is only populated for
// EncodingLegacy instructions; the others are sized but not disassembled.
type Instruction struct {
	Offset   int
	Len      int
	Inst     x86asm.Inst
	Layout   Layout
	Encoding Encoding
}

func (i Instruction) End() int { return i.Offset + i.Len }

// Bytes returns the instruction's encoding within code.
func (i Instruction) Bytes(code []byte) []byte {
	return code[i.Offset:i.End()]
}

func (i Instruction) Syntax() string {
	if i.Encoding != EncodingLegacy {
		return i.Encoding.String()
	}
	return x86asm.IntelSyntax(i.Inst, uint64(i.Offset), nil)
}

// IsControlTransfer reports whether the instruction can redirect execution.
func (i Instruction) IsControlTransfer() bool {
	if i.Inst.PCRel > 0 {
		return true
	}
	switch i.Inst.Op {
	case x86asm.JMP, x86asm.CALL, x86asm.RET, x86asm.LJMP, x86asm.LCALL, x86asm.LRET:
		return true
	}
	return false
}

// Decode splits code into a contiguous sequence of instructions, scanning
// linearly from offset 0. Any offset without a valid encoding, including a
// final instruction that runs past the end of code, is fatal: there is no
// resynchronization.
func Decode(code []byte, bitness Bitness) ([]Instruction, error) {
	if err := bitness.Validate(); err != nil {
		return nil, err
	}

	insts := make([]Instruction, 0, len(code)/3)
	for offset := 0; offset < len(code); {
		inst, err := decodeOne(code[offset:], bitness)
		if err != nil {
			return nil, &DecodeError{Offset: offset, Err: err}
		}
		inst.Offset = offset
		insts = append(insts, inst)
		offset += inst.Len
	}

	return insts, nil
}

func decodeOne(src []byte, bitness Bitness) (Instruction, error) {
	l, enc, n, err := sizeExtended(src, bitness)
	if err != nil {
		return Instruction{}, err
	}
	if n > 0 {
		return Instruction{Len: n, Layout: l, Encoding: enc}, nil
	}

	inst, err := x86asm.Decode(src, int(bitness))
	if err != nil {
		return Instruction{}, err
	}
	// x86asm reports an invalid instruction behind prefixes as a one-byte
	// pseudo-instruction holding the first prefix, with no error.
	if inst.Op == 0 {
		return Instruction{}, x86asm.ErrUnrecognized
	}
	// x86asm only knows a few VEX instructions and sizes the rest wrongly.
	// sizeExtended claims every VEX form first, so one reaching here is a bug.
	if inst.Prefix[0].IsVEX() {
		return Instruction{}, errUnsizedVEX
	}
	if inst.Len <= 0 || inst.Len > len(src) {
		return Instruction{}, errEmptyInstruction
	}

	return Instruction{
		Len:    inst.Len,
		Inst:   inst,
		Layout: parseLayout(src[:inst.Len], bitness),
	}, nil
}
