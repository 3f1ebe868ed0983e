// Package fingerprint implements the versioned, textual fingerprint
// identifier (spec §4.4): a size, a hash, and an optional modulus,
// rendered as a "urn:decomp:match:fingerprint" URN.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ttkb-oss/objmatch/rabinkarp"
)

const (
	urnScheme = "urn:decomp:match:fingerprint"
	version0  = "0"
)

// DefaultModulus is the modulus a V0 fingerprint's textual form omits.
const DefaultModulus = rabinkarp.DefaultModulus

// ErrFormat reports a malformed fingerprint URN.
type ErrFormat struct {
	Reason string
}

func (e *ErrFormat) Error() string {
	return fmt.Sprintf("fingerprint: %s", e.Reason)
}

// V0 is the version-0 fingerprint: a byte size, a rolling hash, and the
// modulus that produced it (nil means DefaultModulus).
type V0 struct {
	Size    uint64
	Hash    uint64
	Modulus *uint64
}

// NewV0 constructs a fingerprint using the default modulus.
func NewV0(size, hash uint64) V0 {
	return V0{Size: size, Hash: hash}
}

// NewV0WithModulus constructs a fingerprint carrying an explicit modulus.
func NewV0WithModulus(size, hash, modulus uint64) V0 {
	return V0{Size: size, Hash: hash, Modulus: &modulus}
}

// modulusValue returns the effective modulus: the explicit one if set,
// else DefaultModulus.
func (v V0) modulusValue() uint64 {
	if v.Modulus != nil {
		return *v.Modulus
	}
	return DefaultModulus
}

// Equal compares two fingerprints by effective value (size, hash, and
// modulus once defaults are resolved).
func (v V0) Equal(other V0) bool {
	return v.Size == other.Size && v.Hash == other.Hash && v.modulusValue() == other.modulusValue()
}

// String renders the canonical textual form: lowercase hex hash, decimal
// size and modulus, with the modulus field omitted when it equals
// DefaultModulus.
func (v V0) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%d:%x", urnScheme, version0, v.Size, v.Hash)
	if v.Modulus != nil && *v.Modulus != DefaultModulus {
		fmt.Fprintf(&b, ":%d", *v.Modulus)
	}
	return b.String()
}

// ParseV0 parses a fingerprint URN of the form
// "urn:decomp:match:fingerprint:0:<size_dec>:<hash_hex>[:<modulus_dec>]".
func ParseV0(s string) (V0, error) {
	const prefix = urnScheme + ":" + version0 + ":"
	if !strings.HasPrefix(s, prefix) {
		return V0{}, &ErrFormat{Reason: fmt.Sprintf("missing prefix %q", prefix)}
	}

	fields := strings.Split(strings.TrimPrefix(s, prefix), ":")
	if len(fields) < 2 || len(fields) > 3 {
		return V0{}, &ErrFormat{Reason: fmt.Sprintf("expected 2 or 3 fields, got %d", len(fields))}
	}

	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return V0{}, fmt.Errorf("fingerprint: parsing size: %w", err)
	}

	hash, err := strconv.ParseUint(fields[1], 16, 64)
	if err != nil {
		return V0{}, fmt.Errorf("fingerprint: parsing hash: %w", err)
	}

	v := V0{Size: size, Hash: hash}

	if len(fields) == 3 {
		modulus, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return V0{}, fmt.Errorf("fingerprint: parsing modulus: %w", err)
		}
		v.Modulus = &modulus
	}

	return v, nil
}
