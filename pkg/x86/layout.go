package x86

// OpcodeMap identifies which opcode table an instruction's opcode byte belongs to.
type OpcodeMap uint8

const (
	MapPrimary OpcodeMap = iota
	Map0F
	Map0F38
	Map0F3A
	// EVEX maps 5 and 6 hold the AVX512-FP16 instructions.
	MapEVEX5
	MapEVEX6
)

// REX prefix bits.
const (
	RexW byte = 0x08
	RexR byte = 0x04
	RexX byte = 0x02
	RexB byte = 0x01
)

// Layout records where the fixed fields of an encoded instruction live,
// as offsets relative to the instruction start.
type Layout struct {
	// Prefixes is the number of bytes before the opcode that are not the
	// effective REX prefix (legacy prefixes and any REX that a later legacy
	// prefix cancelled).
	Prefixes int
	// REX is the offset of the effective REX prefix, or -1.
	REX int
	// VEX is the offset of a VEX or EVEX prefix, or -1. When set, the opcode
	// map is implied by the prefix and Opcode is the final opcode byte.
	VEX    int
	Opcode int
	Map    OpcodeMap
	// ModRM is the offset of the byte that follows the opcode, or -1 when
	// the instruction ends with its opcode. Whether that byte really is a
	// ModRM depends on the opcode.
	ModRM int
}

func isLegacyPrefix(b byte) bool {
	switch b {
	case 0xF0, 0xF2, 0xF3, // lock, repne, rep
		0x26, 0x2E, 0x36, 0x3E, 0x64, 0x65, // segment overrides
		0x66, 0x67: // operand and address size
		return true
	}
	return false
}

// IsSegmentPrefix reports whether b is one of the six segment override prefixes.
func IsSegmentPrefix(b byte) bool {
	switch b {
	case 0x26, 0x2E, 0x36, 0x3E, 0x64, 0x65:
		return true
	}
	return false
}

// parseLayout walks the prefix and opcode bytes of a single, already
// validated instruction. A REX byte only takes effect when it immediately
// precedes the opcode; one followed by a legacy prefix is ignored.
func parseLayout(raw []byte, bitness Bitness) Layout {
	l := Layout{REX: -1, VEX: -1, ModRM: -1}

	i := 0
	for i < len(raw) {
		b := raw[i]
		if isLegacyPrefix(b) {
			l.REX = -1
			i++
			continue
		}
		if bitness == Bits64 && b&0xF0 == 0x40 {
			l.REX = i
			i++
			continue
		}
		break
	}

	l.Prefixes = i
	if l.REX >= 0 {
		l.Prefixes--
	}
	l.Opcode = i

	end := i + 1
	if i < len(raw) && raw[i] == 0x0F && i+1 < len(raw) {
		switch raw[i+1] {
		case 0x38:
			l.Map = Map0F38
			end = i + 3
		case 0x3A:
			l.Map = Map0F3A
			end = i + 3
		default:
			l.Map = Map0F
			end = i + 2
		}
	}

	if end < len(raw) {
		l.ModRM = end
	}
	return l
}

// OpcodeByte returns the final opcode byte (the one that selects the operation
// within its map).
func (l Layout) OpcodeByte(raw []byte) byte {
	if l.VEX >= 0 {
		return raw[l.Opcode]
	}
	switch l.Map {
	case Map0F:
		return raw[l.Opcode+1]
	case Map0F38, Map0F3A:
		return raw[l.Opcode+2]
	}
	return raw[l.Opcode]
}

// OpcodeOffset is the offset of the final opcode byte.
func (l Layout) OpcodeOffset() int {
	if l.VEX >= 0 {
		return l.Opcode
	}
	switch l.Map {
	case Map0F:
		return l.Opcode + 1
	case Map0F38, Map0F3A:
		return l.Opcode + 2
	}
	return l.Opcode
}

// Rex returns the effective REX byte, or 0 when there is none.
func (l Layout) Rex(raw []byte) byte {
	if l.REX < 0 {
		return 0
	}
	return raw[l.REX]
}

// ModRM is a decoded ModRM byte.
type ModRM byte

func (m ModRM) Mod() byte { return byte(m) >> 6 }
func (m ModRM) Reg() byte { return (byte(m) >> 3) & 7 }
func (m ModRM) RM() byte  { return byte(m) & 7 }

// IsRegister reports whether the r/m operand names a register rather than memory.
func (m ModRM) IsRegister() bool { return m.Mod() == 3 }

func MakeModRM(mod, reg, rm byte) ModRM {
	return ModRM(mod<<6 | (reg&7)<<3 | rm&7)
}

// AddressSize is the effective address size in bits given an instruction's
// legacy prefixes.
func AddressSize(prefixes []byte, bitness Bitness) int {
	override := false
	for _, b := range prefixes {
		if b == 0x67 {
			override = true
		}
	}
	switch bitness {
	case Bits16:
		if override {
			return 32
		}
		return 16
	case Bits32:
		if override {
			return 16
		}
		return 32
	}
	if override {
		return 32
	}
	return 64
}
