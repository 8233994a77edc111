package x86

import (
	"errors"
	"fmt"
)

// Encoding tells instructions decoded by x86asm apart from the ones this
// package sizes itself. Only EncodingLegacy instructions carry an x86asm.Inst.
type Encoding uint8

const (
	EncodingLegacy Encoding = iota
	EncodingVEX
	EncodingEVEX
	EncodingEndbr64
	EncodingEndbr32
)

func (e Encoding) String() string {
	switch e {
	case EncodingLegacy:
		return "legacy"
	case EncodingVEX:
		return "vex"
	case EncodingEVEX:
		return "evex"
	case EncodingEndbr64:
		return "endbr64"
	case EncodingEndbr32:
		return "endbr32"
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

var (
	errTruncated   = errors.New("truncated instruction")
	errReservedMap = errors.New("reserved VEX/EVEX opcode map")
	errBadEVEX     = errors.New("malformed EVEX prefix")
)

// Opcodes in VEX/EVEX map 0F that take an 8-bit immediate: the shift and
// shuffle groups, CMPPS and friends, PINSRW, PEXTRW and SHUFPS.
var vexImm8Ops0F = map[byte]bool{
	0x70: true, 0x71: true, 0x72: true, 0x73: true,
	0xC2: true, 0xC4: true, 0xC5: true, 0xC6: true,
}

// sizeExtended recognizes ENDBR32/ENDBR64 and VEX/EVEX encoded instructions
// at the start of src and returns their length. It returns a zero length
// when src starts with something else, which is left to x86asm.
func sizeExtended(src []byte, bitness Bitness) (Layout, Encoding, int, error) {
	if len(src) >= 4 && src[0] == 0xF3 && src[1] == 0x0F && src[2] == 0x1E && (src[3] == 0xFA || src[3] == 0xFB) {
		enc := EncodingEndbr64
		if src[3] == 0xFB {
			enc = EncodingEndbr32
		}
		return parseLayout(src[:4], bitness), enc, 4, nil
	}

	// VEX and EVEX do not exist in 16-bit mode.
	if bitness == Bits16 {
		return Layout{}, 0, 0, nil
	}

	// Only segment overrides and the address size prefix may precede VEX.
	i := 0
	for i < len(src) && i < 14 {
		switch src[i] {
		case 0x26, 0x2E, 0x36, 0x3E, 0x64, 0x65, 0x67:
			i++
			continue
		}
		break
	}
	if i >= len(src) {
		return Layout{}, 0, 0, nil
	}

	b := src[i]
	if b != 0xC4 && b != 0xC5 && b != 0x62 {
		return Layout{}, 0, 0, nil
	}
	if i+1 >= len(src) {
		if bitness == Bits64 {
			return Layout{}, 0, 0, errTruncated
		}
		return Layout{}, 0, 0, nil
	}
	// Outside 64-bit mode these bytes are LES, LDS and BOUND unless the
	// next byte would be a register ModRM, which those instructions forbid.
	if bitness != Bits64 && src[i+1]&0xC0 != 0xC0 {
		return Layout{}, 0, 0, nil
	}

	l := Layout{Prefixes: i, REX: -1, VEX: i, ModRM: -1}
	enc := EncodingVEX
	var m byte
	pos := i
	switch b {
	case 0xC5:
		m, pos = 1, i+2
	case 0xC4:
		if i+2 >= len(src) {
			return Layout{}, 0, 0, errTruncated
		}
		m, pos = src[i+1]&0x1F, i+3
	case 0x62:
		if i+3 >= len(src) {
			return Layout{}, 0, 0, errTruncated
		}
		if src[i+2]&0x04 == 0 {
			return Layout{}, 0, 0, errBadEVEX
		}
		enc = EncodingEVEX
		m, pos = src[i+1]&0x07, i+4
	}

	switch {
	case m == 1:
		l.Map = Map0F
	case m == 2:
		l.Map = Map0F38
	case m == 3:
		l.Map = Map0F3A
	case m == 5 && enc == EncodingEVEX:
		l.Map = MapEVEX5
	case m == 6 && enc == EncodingEVEX:
		l.Map = MapEVEX6
	default:
		return Layout{}, 0, 0, fmt.Errorf("%w: %d", errReservedMap, m)
	}

	if pos >= len(src) {
		return Layout{}, 0, 0, errTruncated
	}
	l.Opcode = pos
	op := src[pos]
	pos++

	// VZEROUPPER and VZEROALL are the only VEX instructions without ModRM.
	if enc == EncodingVEX && l.Map == Map0F && op == 0x77 {
		return l, enc, pos, nil
	}

	if pos >= len(src) {
		return Layout{}, 0, 0, errTruncated
	}
	l.ModRM = pos
	n, err := modRMLength(src[pos:], AddressSize(src[:i], bitness))
	if err != nil {
		return Layout{}, 0, 0, err
	}
	pos += n

	if l.Map == Map0F3A || (l.Map == Map0F && vexImm8Ops0F[op]) {
		pos++
	}
	if pos > len(src) {
		return Layout{}, 0, 0, errTruncated
	}
	return l, enc, pos, nil
}

// modRMLength is the combined length of the ModRM byte at the start of b and
// the SIB and displacement bytes it implies.
func modRMLength(b []byte, addrSize int) (int, error) {
	m := ModRM(b[0])
	n := 1
	if m.IsRegister() {
		return n, nil
	}

	if addrSize == 16 {
		switch {
		case m.Mod() == 0 && m.RM() == 6, m.Mod() == 2:
			n += 2
		case m.Mod() == 1:
			n++
		}
	} else {
		base := m.RM()
		if m.RM() == 4 {
			if len(b) < 2 {
				return 0, errTruncated
			}
			base = b[1] & 7
			n++
		}
		switch {
		case m.Mod() == 0 && base == 5, m.Mod() == 2:
			n += 4
		case m.Mod() == 1:
			n++
		}
	}

	if n > len(b) {
		return 0, errTruncated
	}
	return n, nil
}
