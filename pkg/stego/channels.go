package stego

import (
	"fmt"

	"github.com/andresmejia3/steg86/pkg/x86"
	"golang.org/x/arch/x86/x86asm"
)

// Class is a redundancy class: a family of instructions that have two
// equal-length encodings of the same operation. The set is closed, and the
// order of classes below is the order in which an instruction is tested.
type Class uint8

const (
	// ClassDirection covers two-operand ALU and MOV instructions between two
	// registers, where the opcode's direction bit picks which ModRM field
	// names the destination.
	ClassDirection Class = iota
	// ClassCommutative covers TEST and XCHG between two distinct registers,
	// which can name their operands in either order.
	ClassCommutative
	// ClassHintNop covers the multi-byte NOP (0F 1F /0), whose r/m operand is
	// never accessed.
	ClassHintNop
	// ClassSegment covers ES/CS/SS/DS override prefixes in 64-bit mode, which
	// the processor ignores.
	ClassSegment

	numClasses
)

var classes = [...]Class{ClassDirection, ClassCommutative, ClassHintNop, ClassSegment}

// Classes returns every redundancy class in matching order.
func Classes() []Class {
	return classes[:]
}

func (c Class) String() string {
	switch c {
	case ClassDirection:
		return "direction"
	case ClassCommutative:
		return "commutative"
	case ClassHintNop:
		return "hint-nop"
	case ClassSegment:
		return "segment"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Opcodes with a direction bit: even is "r/m, reg", +2 is "reg, r/m".
var directionOps = map[byte]x86asm.Op{
	0x00: x86asm.ADD, 0x01: x86asm.ADD, 0x02: x86asm.ADD, 0x03: x86asm.ADD,
	0x08: x86asm.OR, 0x09: x86asm.OR, 0x0A: x86asm.OR, 0x0B: x86asm.OR,
	0x10: x86asm.ADC, 0x11: x86asm.ADC, 0x12: x86asm.ADC, 0x13: x86asm.ADC,
	0x18: x86asm.SBB, 0x19: x86asm.SBB, 0x1A: x86asm.SBB, 0x1B: x86asm.SBB,
	0x20: x86asm.AND, 0x21: x86asm.AND, 0x22: x86asm.AND, 0x23: x86asm.AND,
	0x28: x86asm.SUB, 0x29: x86asm.SUB, 0x2A: x86asm.SUB, 0x2B: x86asm.SUB,
	0x30: x86asm.XOR, 0x31: x86asm.XOR, 0x32: x86asm.XOR, 0x33: x86asm.XOR,
	0x38: x86asm.CMP, 0x39: x86asm.CMP, 0x3A: x86asm.CMP, 0x3B: x86asm.CMP,
	0x88: x86asm.MOV, 0x89: x86asm.MOV, 0x8A: x86asm.MOV, 0x8B: x86asm.MOV,
}

var commutativeOps = map[byte]x86asm.Op{
	0x84: x86asm.TEST, 0x85: x86asm.TEST,
	0x86: x86asm.XCHG, 0x87: x86asm.XCHG,
}

func (c Class) matches(inst x86.Instruction, raw []byte, bitness x86.Bitness) bool {
	if inst.Encoding != x86.EncodingLegacy {
		return false
	}
	l := inst.Layout
	switch c {
	case ClassDirection, ClassCommutative:
		if l.Map != x86.MapPrimary || l.ModRM < 0 {
			return false
		}
		table := directionOps
		if c == ClassCommutative {
			table = commutativeOps
		}
		op, ok := table[l.OpcodeByte(raw)]
		if !ok || op != inst.Inst.Op || !x86.ModRM(raw[l.ModRM]).IsRegister() {
			return false
		}
		if c == ClassCommutative {
			reg, rm := registerPair(l, raw)
			return reg != rm
		}
		return true

	case ClassHintNop:
		if l.Map != x86.Map0F || l.OpcodeByte(raw) != 0x1F || l.ModRM < 0 || inst.Inst.Op != x86asm.NOP {
			return false
		}
		m := x86.ModRM(raw[l.ModRM])
		if m.Reg() != 0 {
			return false
		}
		if m.IsRegister() {
			return true
		}
		// rm 100 selects a SIB byte and 101 a displacement-only form, and
		// 16-bit addressing uses a different r/m table entirely.
		return x86.AddressSize(raw[:l.Prefixes], bitness) != 16 && m.RM() != 4 && m.RM() != 5

	case ClassSegment:
		if bitness != x86.Bits64 || inst.IsControlTransfer() {
			return false
		}
		_, ok := nullSegmentPrefix(raw[:l.Prefixes])
		return ok
	}
	return false
}

// value returns the bit the current encoding represents.
func (c Class) value(l x86.Layout, raw []byte) int {
	switch c {
	case ClassDirection:
		return int(l.OpcodeByte(raw)>>1) & 1
	case ClassCommutative:
		if reg, rm := registerPair(l, raw); reg > rm {
			return 1
		}
		return 0
	case ClassHintNop:
		return int(x86.ModRM(raw[l.ModRM]).RM()) & 1
	case ClassSegment:
		pos, _ := nullSegmentPrefix(raw[:l.Prefixes])
		return int(raw[pos]>>4) & 1
	}
	return 0
}

// encode returns a copy of raw rewritten to represent bit. The copy always
// has the same length as raw and still belongs to the same class.
func (c Class) encode(l x86.Layout, raw []byte, bit int) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	if c.value(l, raw) == bit {
		return out
	}

	switch c {
	case ClassDirection:
		out[l.OpcodeOffset()] ^= 0x02
		swapOperands(l, out)
	case ClassCommutative:
		swapOperands(l, out)
	case ClassHintNop:
		out[l.ModRM] ^= 0x01
	case ClassSegment:
		pos, _ := nullSegmentPrefix(out[:l.Prefixes])
		out[pos] ^= 0x10
	}
	return out
}

// registerPair returns the full register numbers of the ModRM reg and r/m
// fields, including their REX extensions.
func registerPair(l x86.Layout, raw []byte) (reg, rm byte) {
	m := x86.ModRM(raw[l.ModRM])
	rex := l.Rex(raw)
	reg, rm = m.Reg(), m.RM()
	if rex&x86.RexR != 0 {
		reg |= 8
	}
	if rex&x86.RexB != 0 {
		rm |= 8
	}
	return reg, rm
}

// swapOperands exchanges the ModRM reg and r/m fields of a register-register
// instruction along with their REX extension bits.
func swapOperands(l x86.Layout, out []byte) {
	m := x86.ModRM(out[l.ModRM])
	out[l.ModRM] = byte(x86.MakeModRM(m.Mod(), m.RM(), m.Reg()))

	if l.REX < 0 {
		return
	}
	rex := out[l.REX]
	swapped := rex &^ (x86.RexR | x86.RexB)
	if rex&x86.RexR != 0 {
		swapped |= x86.RexB
	}
	if rex&x86.RexB != 0 {
		swapped |= x86.RexR
	}
	out[l.REX] = swapped
}

// nullSegmentPrefix finds the single ES/CS/SS/DS override among prefixes.
// It fails when there is none, more than one, or an FS/GS override is present.
func nullSegmentPrefix(prefixes []byte) (int, bool) {
	pos := -1
	for i, b := range prefixes {
		if !x86.IsSegmentPrefix(b) {
			continue
		}
		if b == 0x64 || b == 0x65 || pos >= 0 {
			return 0, false
		}
		pos = i
	}
	return pos, pos >= 0
}

// Channel is one encoding choice in the code stream. Its byte span is the
// span of the instruction it belongs to.
type Channel struct {
	Index int // instruction index
	Start int
	End   int
	Width int
	Value int
	Class Class

	layout x86.Layout
}

// Encode returns the replacement bytes for the channel's span that represent
// value. code must be the buffer the channel was enumerated from.
func (c Channel) Encode(code []byte, value int) ([]byte, error) {
	if value < 0 || value >= 1<<c.Width {
		return nil, fmt.Errorf("value %d does not fit a %d-bit channel", value, c.Width)
	}
	return c.Class.encode(c.layout, code[c.Start:c.End], value), nil
}

// Enumerate lists the channels of a decoded instruction sequence in
// ascending offset order. An instruction contributes at most one channel,
// from the first class it matches.
func Enumerate(code []byte, insts []x86.Instruction, bitness x86.Bitness) []Channel {
	var channels []Channel
	for idx, inst := range insts {
		raw := inst.Bytes(code)
		for _, class := range classes {
			if !class.matches(inst, raw, bitness) {
				continue
			}
			channels = append(channels, Channel{
				Index:  idx,
				Start:  inst.Offset,
				End:    inst.End(),
				Width:  1,
				Value:  class.value(inst.Layout, raw),
				Class:  class,
				layout: inst.Layout,
			})
			break
		}
	}
	return channels
}
