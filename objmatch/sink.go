package objmatch

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Sink is the emission capability the evaluator and scanner write their
// results through (spec §9 "writer polymorphism"): tests inject an
// in-memory buffer, the CLI injects stdout or a file opened for the
// run's duration.
type Sink interface {
	EmitSegmentSignature(SegmentSignature) error
	EmitSegmentOffset(SegmentOffset) error
}

// YAMLSink writes each emission as its own "---"-delimited YAML
// document, flushed immediately so a later failure still leaves earlier
// documents in place (spec §7: "a partially successful scan produces
// output for every accepted segment before the failure point").
type YAMLSink struct {
	w io.Writer
}

// NewYAMLSink wraps w as a Sink.
func NewYAMLSink(w io.Writer) *YAMLSink {
	return &YAMLSink{w: w}
}

func (s *YAMLSink) emit(v interface{}) error {
	if _, err := fmt.Fprintln(s.w, "---"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(s.w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// EmitSegmentSignature writes one library document.
func (s *YAMLSink) EmitSegmentSignature(sig SegmentSignature) error {
	return s.emit(sig)
}

// EmitSegmentOffset writes one scan-result document.
func (s *YAMLSink) EmitSegmentOffset(off SegmentOffset) error {
	return s.emit(off)
}
