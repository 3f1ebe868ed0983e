// Package elfreader reads the pieces of a MIPS ELF object that the
// fingerprinting and inspection tooling needs: the ABI/family hint,
// executable section bytes, and function symbols. Built on the stdlib
// debug/elf package the same way other_examples'
// zboralski-galago emulator reads ARM64 ELF metadata.
package elfreader

import (
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"github.com/ttkb-oss/objmatch/arch"
)

// MIPS e_flags bits (elf.h EF_MIPS_*). debug/elf's File/FileHeader don't
// expose e_flags (only the raw Header32/Header64 structs do), so FamilyOf
// reads it straight out of the file instead of through elf.Open's File.
const (
	efMipsArchMask = 0xf0000000
	efMipsArch1    = 0x00000000
	efMipsArch2    = 0x10000000
	efMipsArch3    = 0x20000000

	efMipsMachMask = 0x00ff0000
	efMipsMach5900 = 0x00920000
)

// elf32FlagsOffset/elf64FlagsOffset are e_flags' byte offset in the ELF32
// and ELF64 file headers: 16-byte e_ident plus e_type, e_machine,
// e_version, e_entry, e_phoff, e_shoff (e_entry/phoff/shoff are 4 bytes
// wide in ELF32, 8 in ELF64).
const (
	elf32FlagsOffset = 0x24
	elf64FlagsOffset = 0x30
)

// readMIPSFlags re-reads f's raw header to pull out e_flags, since
// debug/elf's parsed File discards it.
func readMIPSFlags(path string, f *elf.File) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	offset := int64(elf32FlagsOffset)
	if f.Class == elf.ELFCLASS64 {
		offset = elf64FlagsOffset
	}

	var buf [4]byte
	if _, err := file.ReadAt(buf[:], offset); err != nil {
		return 0, err
	}
	return f.ByteOrder.Uint32(buf[:]), nil
}

// ParseError wraps a debug/elf failure with the file path that caused it.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("elfreader: %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FuncSymbol is a STT_FUNC symbol's name, value (VRAM), and size.
type FuncSymbol struct {
	Name string
	VRAM uint64
	Size uint64
}

// FamilyOf inspects an ELF file's e_machine/e_flags fields for a MIPS ABI
// hint: e_machine == EM_MIPS plus the EF_MIPS_MACH/EF_MIPS_ARCH bits of
// e_flags (ARCH_1->R3000GTE, ARCH_2->R4000Allegrex, ARCH_3->R4000,
// MACH==0x920000->R5900, checked ahead of ARCH since a MACH hit pins the
// family regardless of the architecture revision it was compiled against).
// ok is false when the file is not recognizably MIPS or carries no usable
// hint, in which case the caller should fall back to a configured default
// family.
func FamilyOf(path string) (arch.MIPSFamily, bool, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, false, &ParseError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	if f.Machine != elf.EM_MIPS {
		return 0, false, nil
	}

	flags, err := readMIPSFlags(path, f)
	if err != nil {
		return 0, false, &ParseError{Path: path, Reason: "reading e_flags", Err: err}
	}

	if flags&efMipsMachMask == efMipsMach5900 {
		return arch.R5900, true, nil
	}

	switch flags & efMipsArchMask {
	case efMipsArch1:
		return arch.R3000GTE, true, nil
	case efMipsArch2:
		return arch.R4000Allegrex, true, nil
	case efMipsArch3:
		return arch.R4000, true, nil
	default:
		return 0, false, nil
	}
}

// SectionMap is the decoded byte content of every PROGBITS+SHF_EXECINSTR
// section, keyed by its starting VRAM address, used by evaluate to find
// the section containing each object's text range.
type SectionMap struct {
	sections []section
}

type section struct {
	base uint64
	data []byte
}

// NewStaticSectionMap builds a SectionMap directly from VRAM->bytes
// pairs, bypassing ELF parsing entirely. Used by hermetic tests that
// stand in for what TextSections would have produced from a real file.
func NewStaticSectionMap(byVRAM map[uint64][]byte) SectionMap {
	sm := SectionMap{}
	for base, data := range byVRAM {
		sm.sections = append(sm.sections, section{base: base, data: data})
	}
	return sm
}

// DataForVRAM returns the section bytes and base VRAM address of the
// section containing addr, if any.
func (m SectionMap) DataForVRAM(addr uint64) (data []byte, base uint64, ok bool) {
	for _, s := range m.sections {
		if addr >= s.base && addr < s.base+uint64(len(s.data)) {
			return s.data, s.base, true
		}
	}
	return nil, 0, false
}

// TextSections reads every PROGBITS section flagged SHF_EXECINSTR,
// excluding the PSX-toolchain header sections ".mwo_header"/".header"
// that carry no instruction bytes despite being marked executable.
func TextSections(path string) (SectionMap, error) {
	f, err := elf.Open(path)
	if err != nil {
		return SectionMap{}, &ParseError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	var sm SectionMap
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS || sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		if sec.Name == ".mwo_header" || sec.Name == ".header" {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return SectionMap{}, &ParseError{Path: path, Reason: fmt.Sprintf("reading section %s", sec.Name), Err: err}
		}
		sm.sections = append(sm.sections, section{base: sec.Addr, data: data})
	}
	return sm, nil
}

// FunctionSymbols returns every STT_FUNC symbol in the ELF symbol table,
// except unnamed ones and those whose name starts with "$".
func FunctionSymbols(path string) ([]FuncSymbol, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "reading symbol table", Err: err}
	}

	var out []FuncSymbol
	for _, sym := range syms {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
			continue
		}
		if sym.Name == "" || strings.HasPrefix(sym.Name, "$") {
			continue
		}
		out = append(out, FuncSymbol{Name: sym.Name, VRAM: sym.Value, Size: sym.Size})
	}
	return out, nil
}
