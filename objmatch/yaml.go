package objmatch

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/fingerprint"
)

// hexUint64 renders as "0x<UPPERHEX>" and parses the same, per spec §6
// ("Numerical fields are rendered in uppercase hex with 0x prefix").
type hexUint64 uint64

func (h hexUint64) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%X", uint64(h)), nil
}

func (h *hexUint64) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("objmatch: parsing hex field %q: %w", s, err)
	}
	*h = hexUint64(v)
	return nil
}

// fingerprintField renders a fingerprint as its canonical V0 URN string
// (spec §6 allows either raw hex or the URN form; this module always
// emits the URN form, which round-trips size, hash, and modulus
// together).
type fingerprintField fingerprint.V0

func (f fingerprintField) MarshalYAML() (interface{}, error) {
	return fingerprint.V0(f).String(), nil
}

func (f *fingerprintField) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := fingerprint.ParseV0(s)
	if err != nil {
		return err
	}
	*f = fingerprintField(v)
	return nil
}

type yamlFunctionSignature struct {
	Name        string           `yaml:"name"`
	Fingerprint fingerprintField `yaml:"fingerprint"`
	Size        hexUint64        `yaml:"size"`
}

type yamlRODataSignature struct {
	Kind string    `yaml:"rodataType"`
	Size hexUint64 `yaml:"size"`
}

type yamlSegmentSignature struct {
	Name        string                 `yaml:"name"`
	Fingerprint fingerprintField       `yaml:"fingerprint"`
	Size        hexUint64              `yaml:"size"`
	Family      string                 `yaml:"family"`
	RData       *yamlRODataSignature   `yaml:"rodata,omitempty"`
	Functions   []yamlFunctionSignature `yaml:"functions"`
}

// MarshalYAML renders a SegmentSignature in the spec §6 library shape.
func (s SegmentSignature) MarshalYAML() (interface{}, error) {
	out := yamlSegmentSignature{
		Name:        s.Name,
		Fingerprint: fingerprintField(s.Fingerprint),
		Size:        hexUint64(s.Size),
		Family:      s.Family.String(),
	}
	if s.RData != nil {
		out.RData = &yamlRODataSignature{
			Kind: s.RData.Kind.String(),
			Size: hexUint64(s.RData.Size),
		}
	}
	for _, fn := range s.Functions {
		out.Functions = append(out.Functions, yamlFunctionSignature{
			Name:        fn.Name,
			Fingerprint: fingerprintField(fn.Fingerprint),
			Size:        hexUint64(fn.Size),
		})
	}
	return out, nil
}

// UnmarshalYAML parses a SegmentSignature library document.
func (s *SegmentSignature) UnmarshalYAML(value *yaml.Node) error {
	var in yamlSegmentSignature
	if err := value.Decode(&in); err != nil {
		return err
	}

	family, err := arch.ParseMIPSFamily(in.Family)
	if err != nil {
		return err
	}

	out := SegmentSignature{
		Name:        in.Name,
		Fingerprint: fingerprint.V0(in.Fingerprint),
		Size:        uint64(in.Size),
		Family:      family,
	}
	if in.RData != nil {
		out.RData = &RODataSignature{
			Kind: ParseRODataKind(in.RData.Kind),
			Size: uint64(in.RData.Size),
		}
	}
	for _, fn := range in.Functions {
		out.Functions = append(out.Functions, FunctionSignature{
			Name:        fn.Name,
			Fingerprint: fingerprint.V0(fn.Fingerprint),
			Size:        uint64(fn.Size),
		})
	}

	*s = out
	return nil
}

type yamlRODataOffset struct {
	Offset hexUint64 `yaml:"offset"`
	Size   hexUint64 `yaml:"size"`
}

type yamlSegmentOffset struct {
	Name    string               `yaml:"name"`
	Offset  hexUint64            `yaml:"offset"`
	Size    hexUint64            `yaml:"size"`
	RData   *yamlRODataOffset    `yaml:"rodata,omitempty"`
	Symbols map[string]hexUint64 `yaml:"symbols"`
}

// MarshalYAML renders a SegmentOffset in the spec §6 scan-result shape.
func (s SegmentOffset) MarshalYAML() (interface{}, error) {
	out := yamlSegmentOffset{
		Name:    s.Name,
		Offset:  hexUint64(s.Offset),
		Size:    hexUint64(s.Size),
		Symbols: make(map[string]hexUint64, len(s.Symbols)),
	}
	if s.RData != nil {
		out.RData = &yamlRODataOffset{Offset: hexUint64(s.RData.Offset), Size: hexUint64(s.RData.Size)}
	}
	for name, offset := range s.Symbols {
		out.Symbols[name] = hexUint64(offset)
	}
	return out, nil
}

// UnmarshalYAML parses a SegmentOffset scan-result document.
func (s *SegmentOffset) UnmarshalYAML(value *yaml.Node) error {
	var in yamlSegmentOffset
	if err := value.Decode(&in); err != nil {
		return err
	}

	out := SegmentOffset{
		Name:    in.Name,
		Offset:  uint64(in.Offset),
		Size:    uint64(in.Size),
		Symbols: make(map[string]uint64, len(in.Symbols)),
	}
	if in.RData != nil {
		out.RData = &RODataOffset{Offset: uint64(in.RData.Offset), Size: uint64(in.RData.Size)}
	}
	for name, offset := range in.Symbols {
		out.Symbols[name] = uint64(offset)
	}

	*s = out
	return nil
}
