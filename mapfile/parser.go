package mapfile

import (
	"fmt"
	"io"
	"sort"

	"github.com/ttkb-oss/objmatch/elfreader"
	"github.com/ttkb-oss/objmatch/objmatch"
)

// ParseError wraps a malformed map line with its lexer classification.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mapfile: %s: %q", e.Reason, e.Line)
}

// Parser consumes a Lexer's token stream into []objmatch.ObjectMap,
// translating the map's ROM_START/VRAM base-address assignments into
// absolute VROM offsets per original_source/src/map.rs's algorithm. Each
// segment's function list is resolved from the ELF symbol table by
// address range rather than from the map's own inline symbol lines,
// matching the original's behavior (a segment's VRAM range is the
// authority for which ELF symbols belong to it).
type Parser struct {
	lex         *Lexer
	symbols     []elfreader.FuncSymbol
	sectionType string
}

// NewParser builds a Parser over lex, collecting only segments of
// sectionType ("text" is the only section type the fingerprinting
// pipeline currently consumes) and resolving each segment's functions
// from symbols (an ELF symbol table previously read by elfreader).
func NewParser(lex *Lexer, sectionType string, symbols []elfreader.FuncSymbol) *Parser {
	return &Parser{lex: lex, symbols: symbols, sectionType: sectionType}
}

// Parse reads the whole map and returns every matching-section ObjectMap
// found.
func (p *Parser) Parse() ([]objmatch.ObjectMap, error) {
	var (
		romStart uint64
		vram     uint64
		first    = true

		curObject string
		curOffset uint64
		curSize   uint64

		segments []objmatch.ObjectMap
	)

	flush := func() {
		segments = append(segments, objmatch.ObjectMap{
			ObjectPath:            curObject,
			TextVROMOffset:        curOffset - vram + romStart,
			TextVRAM:              curOffset,
			ContainingSegmentVROM: romStart,
			Size:                  curSize,
			TextSymbols:           symbolsInRange(curOffset, curSize, vram, romStart, p.symbols),
		})
	}

	for {
		tok, err := p.lex.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case LineROMStart:
			v, ok := parseHex32(tok.Hex)
			if !ok {
				return nil, &ParseError{Line: tok.Raw, Reason: "bad ROM_START hex"}
			}
			romStart = v

		case LineVRAM:
			v, ok := parseHex32(tok.Hex)
			if !ok {
				return nil, &ParseError{Line: tok.Raw, Reason: "bad VRAM hex"}
			}
			vram = v

		case LineSectionHeader:
			// "obj.c.o(.section)" lines carry no information this parser
			// needs: segment headers below are matched on their own
			// section name.

		case LineAssignment, LineOther, LineSymbol:
			// linker-script assignments, stray lines, and the map's own
			// inline "0xADDR name" symbol listings carry no information
			// this parser needs: segment membership is resolved from the
			// ELF symbol table by address range at flush time instead.

		case LineSegmentHeader:
			if tok.Fields[0] != "."+p.sectionType {
				continue
			}

			offset, ok1 := parseHex32(tok.Fields[1])
			size, ok2 := parseHex32(tok.Fields[2])
			if !ok1 || !ok2 {
				return nil, &ParseError{Line: tok.Raw, Reason: "bad segment header hex fields"}
			}

			if !first {
				flush()
			}
			first = false

			curOffset = offset
			curSize = size
			curObject = tok.Fields[3]
		}
	}

	if !first {
		flush()
	}

	return segments, nil
}

// symbolsInRange returns every ELF symbol whose VRAM falls within
// [vramOffset, vramOffset+size), translated to absolute VROM and sorted
// ascending by VRAM, matching map.rs::symbols_to_segment_symbols.
func symbolsInRange(vramOffset, size, imageVRAM, romStart uint64, elfSymbols []elfreader.FuncSymbol) []objmatch.TextSymbol {
	var out []objmatch.TextSymbol
	for _, s := range elfSymbols {
		if s.VRAM < vramOffset || s.VRAM >= vramOffset+size {
			continue
		}
		out = append(out, objmatch.TextSymbol{
			Name:   s.Name,
			Offset: s.VRAM - imageVRAM + romStart,
			VRAM:   s.VRAM,
			Size:   s.Size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VRAM < out[j].VRAM })
	return out
}
