// Package arch describes the MIPS CPU dialects this module fingerprints
// and the raw byte orders a compiled image may be stored in.
package arch

import "fmt"

// MIPSFamily identifies a MIPS CPU dialect. The dialect determines which
// decoder table a disassembler would use and, by convention, the default
// word endianness of objects built for it.
type MIPSFamily int

const (
	// R3000GTE is the PS1 CPU (plus Geometry Transformation Engine
	// coprocessor extensions). Little-endian.
	R3000GTE MIPSFamily = iota
	// R4000 is the N64 CPU. Big-endian.
	R4000
	// R4000Allegrex is the PSP CPU, an R4000-derived core. Little-endian.
	R4000Allegrex
	// R5900 is the PS2 "Emotion Engine" CPU. Little-endian.
	R5900
)

// String renders the family using the same spelling the YAML library
// format (spec §6) and CLI flags use.
func (f MIPSFamily) String() string {
	switch f {
	case R3000GTE:
		return "R3000GTE"
	case R4000:
		return "R4000"
	case R4000Allegrex:
		return "R4000Allegrex"
	case R5900:
		return "R5900"
	default:
		return fmt.Sprintf("MIPSFamily(%d)", int(f))
	}
}

// ParseMIPSFamily parses the family names used by the YAML library
// format and CLI flags.
func ParseMIPSFamily(s string) (MIPSFamily, error) {
	switch s {
	case "R3000GTE":
		return R3000GTE, nil
	case "R4000":
		return R4000, nil
	case "R4000Allegrex":
		return R4000Allegrex, nil
	case "R5900":
		return R5900, nil
	default:
		return 0, fmt.Errorf("arch: unknown MIPS family %q", s)
	}
}

// BinaryFormat identifies the byte order of a raw N64-style image. Unlike
// MIPSFamily, this describes storage order, not CPU dialect; it only
// matters for images that aren't already wrapped in a format (like ELF)
// that states its own endianness.
type BinaryFormat int

const (
	// BigEndian is the native N64 ".z64" word order: b0 b1 b2 b3.
	BigEndian BinaryFormat = iota
	// LittleEndian reverses the word: b3 b2 b1 b0.
	LittleEndian
	// BigSwapped byte-swaps each 16-bit half: b1 b0 b3 b2.
	BigSwapped
	// LittleSwapped byte-swaps each half of the little-endian word: b2 b3 b0 b1.
	LittleSwapped
)

func (f BinaryFormat) String() string {
	switch f {
	case BigEndian:
		return "BigEndian"
	case LittleEndian:
		return "LittleEndian"
	case BigSwapped:
		return "BigSwapped"
	case LittleSwapped:
		return "LittleSwapped"
	default:
		return fmt.Sprintf("BinaryFormat(%d)", int(f))
	}
}

// DefaultEndianness returns the byte order objects of the given family
// are conventionally linked with: big-endian for the N64's R4000, little-
// endian for everything else (spec §3).
func DefaultEndianness(family MIPSFamily) BinaryFormat {
	if family == R4000 {
		return BigEndian
	}
	return LittleEndian
}
