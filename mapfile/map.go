package mapfile

import (
	"os"

	"github.com/ttkb-oss/objmatch/elfreader"
	"github.com/ttkb-oss/objmatch/objmatch"
)

// ReadSegments opens path and parses every sectionType segment it
// contains ("text" is the only section type the fingerprinting pipeline
// currently consumes), resolving each segment's function symbols from
// symbols (an ELF symbol table previously read by elfreader).
func ReadSegments(path string, sectionType string, symbols []elfreader.FuncSymbol) ([]objmatch.ObjectMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lex := NewLexer(f)
	p := NewParser(lex, sectionType, symbols)
	return p.Parse()
}
