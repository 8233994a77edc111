package container

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/steg86/pkg/x86"
)

type Format string

const (
	FormatRaw   Format = "raw"
	FormatELF   Format = "elf"
	FormatPE    Format = "pe"
	FormatMachO Format = "macho"
)

var (
	ErrUnknownFormat = errors.New("unrecognized binary format (use --raw for a bare instruction stream)")
	ErrNoCode        = errors.New("binary has no code section")
)

// Image is a loaded binary together with the location of its code region.
type Image struct {
	Data    []byte
	Format  Format
	Section string
	Offset  int
	Size    int
	Bitness x86.Bitness
}

// Code returns the code region. It aliases Data.
func (img *Image) Code() []byte {
	return img.Data[img.Offset : img.Offset+img.Size]
}

// Patch returns a copy of the whole binary with its code region replaced.
func (img *Image) Patch(code []byte) ([]byte, error) {
	if len(code) != img.Size {
		return nil, fmt.Errorf("patched code is %d bytes, code region is %d", len(code), img.Size)
	}
	out := make([]byte, len(img.Data))
	copy(out, img.Data)
	copy(out[img.Offset:], code)
	return out, nil
}

func Open(path string, raw bool, bitness int) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, raw, bitness)
}

// Parse locates the code region of data. In raw mode data is the code region
// and bitness must be given; otherwise bitness comes from the file header.
func Parse(data []byte, raw bool, bitness int) (*Image, error) {
	if raw {
		if bitness == 0 {
			return nil, fmt.Errorf("%w: raw mode requires an explicit bitness", x86.ErrUnsupportedBitness)
		}
		b, err := x86.ParseBitness(bitness)
		if err != nil {
			return nil, err
		}
		return &Image{Data: data, Format: FormatRaw, Size: len(data), Bitness: b}, nil
	}

	switch {
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		return parseELF(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		return parsePE(data)
	case isMachO(data):
		return parseMachO(data)
	}
	return nil, ErrUnknownFormat
}

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch binary.LittleEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64:
		return true
	}
	switch binary.BigEndian.Uint32(data) {
	case macho.Magic32, macho.Magic64:
		return true
	}
	return false
}

func parseELF(data []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}

	var bitness x86.Bitness
	switch f.Machine {
	case elf.EM_X86_64:
		bitness = x86.Bits64
	case elf.EM_386:
		bitness = x86.Bits32
	default:
		return nil, fmt.Errorf("unsupported ELF machine %v", f.Machine)
	}

	sec := f.Section(".text")
	if sec == nil || sec.Type == elf.SHT_NOBITS {
		return nil, ErrNoCode
	}
	return newImage(data, FormatELF, sec.Name, sec.Offset, sec.Size, bitness)
}

func parsePE(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PE: %w", err)
	}

	var bitness x86.Bitness
	switch f.Machine {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		bitness = x86.Bits64
	case pe.IMAGE_FILE_MACHINE_I386:
		bitness = x86.Bits32
	default:
		return nil, fmt.Errorf("unsupported PE machine %#x", f.Machine)
	}

	sec := f.Section(".text")
	if sec == nil {
		return nil, ErrNoCode
	}
	// Raw data is padded to the file alignment; the padding is not code.
	size := sec.Size
	if sec.VirtualSize != 0 && sec.VirtualSize < size {
		size = sec.VirtualSize
	}
	return newImage(data, FormatPE, sec.Name, uint64(sec.Offset), uint64(size), bitness)
}

func parseMachO(data []byte) (*Image, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Mach-O: %w", err)
	}

	var bitness x86.Bitness
	switch f.Cpu {
	case macho.CpuAmd64:
		bitness = x86.Bits64
	case macho.Cpu386:
		bitness = x86.Bits32
	default:
		return nil, fmt.Errorf("unsupported Mach-O cpu %v", f.Cpu)
	}

	sec := f.Section("__text")
	if sec == nil || sec.Seg != "__TEXT" {
		return nil, ErrNoCode
	}
	return newImage(data, FormatMachO, sec.Name, uint64(sec.Offset), sec.Size, bitness)
}

func newImage(data []byte, format Format, name string, offset, size uint64, bitness x86.Bitness) (*Image, error) {
	if offset > uint64(len(data)) || size > uint64(len(data))-offset {
		return nil, fmt.Errorf("section %s [%#x, +%#x) lies outside the %d-byte file", name, offset, size, len(data))
	}
	return &Image{
		Data:    data,
		Format:  format,
		Section: name,
		Offset:  int(offset),
		Size:    int(size),
		Bitness: bitness,
	}, nil
}
