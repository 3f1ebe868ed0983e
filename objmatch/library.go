package objmatch

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ReadLibrary decodes a stream of "---"-delimited SegmentSignature
// documents (spec §6's library file format). A malformed document aborts
// the whole read with the underlying parser's error (spec §7: "YAML
// document parse failures inside a library abort the scan").
func ReadLibrary(r io.Reader) ([]SegmentSignature, error) {
	dec := yaml.NewDecoder(r)

	var segments []SegmentSignature
	for {
		var seg SegmentSignature
		err := dec.Decode(&seg)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("objmatch: parsing library document %d: %w", len(segments)+1, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
