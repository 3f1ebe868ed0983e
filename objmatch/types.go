// Package objmatch holds the value types shared by the evaluator and
// scanner: fingerprinted segments/functions/RODATA, the linker-map
// object descriptions they're computed from, and the offsets a scan
// emits. All types here are immutable value types with no
// cross-references (spec §3).
package objmatch

import (
	"path/filepath"
	"strings"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/fingerprint"
)

// FunctionSignature is a named, fingerprinted function within a segment.
type FunctionSignature struct {
	Name        string
	Fingerprint fingerprint.V0
	Size        uint64
}

// RODataKind classifies the layout of a jump-table RODATA block relative
// to its containing segment.
type RODataKind int

const (
	OnlyJumpTables RODataKind = iota
	StartsAndEndsWithJumpTable
	StartsWithJumpTable
	EndsWithJumpTable
	Unknown
)

func (k RODataKind) String() string {
	switch k {
	case OnlyJumpTables:
		return "OnlyJumpTables"
	case StartsAndEndsWithJumpTable:
		return "StartsAndEndsWithJumpTable"
	case StartsWithJumpTable:
		return "StartsWithJumpTable"
	case EndsWithJumpTable:
		return "EndsWithJumpTable"
	default:
		return "Unknown"
	}
}

// ParseRODataKind parses the kind names used in the YAML library format.
func ParseRODataKind(s string) RODataKind {
	switch s {
	case "OnlyJumpTables":
		return OnlyJumpTables
	case "StartsAndEndsWithJumpTable":
		return StartsAndEndsWithJumpTable
	case "StartsWithJumpTable":
		return StartsWithJumpTable
	case "EndsWithJumpTable":
		return EndsWithJumpTable
	default:
		return Unknown
	}
}

// RODataSignature describes the classified RODATA block associated with
// a segment.
type RODataSignature struct {
	Kind RODataKind
	Size uint64
}

// SegmentSignature is the library record for one compiled object: its
// whole-segment fingerprint plus one fingerprint per contained function,
// in ascending in-object offset order.
type SegmentSignature struct {
	Name        string
	Fingerprint fingerprint.V0
	Size        uint64
	Family      arch.MIPSFamily
	RData       *RODataSignature
	Functions   []FunctionSignature
}

// FunctionOffset is a function name resolved to a byte offset within the
// haystack binary.
type FunctionOffset struct {
	Name   string
	Offset uint64
}

// RODataOffset is a located RODATA block.
type RODataOffset struct {
	Offset uint64
	Size   uint64
}

// SegmentOffset is the scan result for one matched segment: its byte
// offset in the haystack, the resolved name, the matched size, each
// function's offset, and (if located) the RODATA offset.
type SegmentOffset struct {
	Name    string
	Offset  uint64
	Size    uint64
	RData   *RODataOffset
	Symbols map[string]uint64
}

// TextSymbol is one function symbol inside an object's .text range, with
// its offset already translated to an absolute VROM address.
type TextSymbol struct {
	Name   string
	Offset uint64 // absolute VROM offset
	VRAM   uint64
	Size   uint64
}

// RODataRegion describes an object's associated .rodata range.
type RODataRegion struct {
	VRAM uint64
	VROM uint64
	Size uint64
}

// ObjectMap is one object file's text (and optional RODATA) region as
// read from a linker map, with its contained function symbols.
//
// Invariant: for every symbol s in TextSymbols, s.Offset is within
// [TextVROMOffset, TextVROMOffset+Size).
type ObjectMap struct {
	ObjectPath            string
	TextVROMOffset        uint64
	TextVRAM              uint64
	ContainingSegmentVROM uint64
	Size                  uint64
	RData                 *RODataRegion
	TextSymbols           []TextSymbol
}

// Name derives the library entry name from ObjectPath, stripping the
// directory and the ".c.o" compiled-object suffix.
func (m ObjectMap) Name() string {
	return strings.TrimSuffix(filepath.Base(m.ObjectPath), ".c.o")
}

// IsAddressInsideFunction reports whether addr falls within some
// function symbol's VRAM range. Used by RODATA classification to decide
// whether a word looks like a jump-table entry pointing back into this
// object's own code.
func (m ObjectMap) IsAddressInsideFunction(addr uint64) bool {
	for _, sym := range m.TextSymbols {
		if addr >= sym.VRAM && addr < sym.VRAM+sym.Size {
			return true
		}
	}
	return false
}
