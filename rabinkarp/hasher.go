// Package rabinkarp implements the Rabin-Karp rolling hash used to turn
// a stream of normalized MIPS instruction words into a compact
// fingerprint, and to slide that fingerprint across a haystack in
// amortized O(1) per word.
package rabinkarp

import (
	"errors"
	"hash"

	"github.com/ttkb-oss/objmatch/arch"
)

// DefaultRadix is the Horner radix, 2^32 — one step per 32-bit word.
const DefaultRadix uint64 = 0x100000000

// DefaultModulus keeps full 32-bit entropy in the hash.
const DefaultModulus uint64 = 0xFFFFFFEF

// FletcherModulus makes a run of trailing all-zero words (NOP padding)
// idempotent, at the cost of entropy. It travels with a fingerprint so
// the scanner and evaluator agree on which modulus produced it.
const FletcherModulus uint64 = 0xFFFFFFFF

// ErrMisalignedBlock is returned by Write when it is handed a byte slice
// whose length is not a multiple of 4.
var ErrMisalignedBlock = errors.New("rabinkarp: misaligned block")

// Hasher is a single-writer, thread-confined Rabin-Karp accumulator over
// normalized MIPS instruction words. It implements hash.Hash64.
type Hasher struct {
	family  arch.MIPSFamily
	radix   uint64
	modulus uint64
	acc     uint64
}

var _ hash.Hash64 = (*Hasher)(nil)

// New creates a Hasher for the given family using the default radix and
// modulus.
func New(family arch.MIPSFamily) *Hasher {
	return NewWithModulus(family, DefaultRadix, DefaultModulus)
}

// NewWithModulus creates a Hasher using an explicit radix and modulus.
func NewWithModulus(family arch.MIPSFamily, radix, modulus uint64) *Hasher {
	return &Hasher{family: family, radix: radix, modulus: modulus}
}

// hornerStep folds one normalized word into an accumulator: acc <- (radix*acc + word) mod modulus.
func hornerStep(word uint32, acc, radix, modulus uint64) uint64 {
	return (radix*acc + uint64(word)) % modulus
}

// Write implements io.Writer / hash.Hash. p's length must be a multiple
// of 4; otherwise it returns (0, ErrMisalignedBlock) without modifying
// the accumulator, matching the hash.Hash contract of never panicking.
func (h *Hasher) Write(p []byte) (int, error) {
	if len(p)%4 != 0 {
		return 0, ErrMisalignedBlock
	}

	for i := 0; i < len(p); i += 4 {
		word := arch.DecodeWord([4]byte{p[i], p[i+1], p[i+2], p[i+3]}, arch.DefaultEndianness(h.family))
		masked := arch.Normalize(word, h.family)
		h.acc = hornerStep(masked, h.acc, h.radix, h.modulus)
	}

	return len(p), nil
}

// MustWrite is Write with the spec's fatal precondition semantics: a
// misaligned block is a programmer error, not a recoverable condition,
// so it panics rather than returning an error.
func (h *Hasher) MustWrite(p []byte) {
	if _, err := h.Write(p); err != nil {
		panic(err)
	}
}

// Sum64 returns the current accumulator.
func (h *Hasher) Sum64() uint64 {
	return h.acc
}

// Sum appends the big-endian encoding of Sum64 to b, per hash.Hash.
func (h *Hasher) Sum(b []byte) []byte {
	v := h.Sum64()
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Reset zeroes the accumulator.
func (h *Hasher) Reset() { h.acc = 0 }

// Size returns the number of bytes Sum appends (8).
func (h *Hasher) Size() int { return 8 }

// BlockSize returns the hasher's natural block size: one MIPS instruction.
func (h *Hasher) BlockSize() int { return 4 }

// Find searches haystack (raw bytes, natural endianness for h's family)
// for a window of needleSizeBytes bytes whose normalized-word hash
// equals needleHash, and returns the first matching byte offset. This is
// the direct spec §4.3 contract; callers that already hold a decoded
// word stream (the scanner, which decodes the haystack once up front)
// should use the package-level FindWords instead of re-decoding on every
// call.
func (h *Hasher) Find(needleHash uint64, needleSizeBytes int, haystack []byte) (int, bool) {
	if needleSizeBytes == 0 {
		return 0, true
	}
	if len(haystack) < needleSizeBytes {
		return 0, false
	}

	words := DecodeWords(haystack, h.family)
	offset, ok := FindWords(needleHash, needleSizeBytes/4, words, 0, len(words), h.radix, h.modulus)
	if !ok {
		return 0, false
	}
	return offset * 4, true
}

// DecodeWords decodes and normalizes every aligned 4-byte chunk of data
// under family's native endianness. Trailing bytes that don't form a
// full word are ignored.
func DecodeWords(data []byte, family arch.MIPSFamily) []uint32 {
	format := arch.DefaultEndianness(family)
	words := make([]uint32, len(data)/4)
	for i := range words {
		off := i * 4
		word := arch.DecodeWord([4]byte{data[off], data[off+1], data[off+2], data[off+3]}, format)
		words[i] = arch.Normalize(word, family)
	}
	return words
}

// FindWords slides the rolling hash across haystack (already-normalized
// words) looking for a window of needleSizeWords whose hash equals
// needleHash, searching only within [start, end). It returns the first
// matching aligned word index (not byte offset) and true, or (0, false)
// if there is no match or the searchable range is shorter than the
// needle.
//
// needleSizeWords == 0 matches at start trivially (spec: "needle_size ==
// 0 returns offset 0").
func FindWords(needleHash uint64, needleSizeWords int, haystack []uint32, start, end int, radix, modulus uint64) (int, bool) {
	if needleSizeWords == 0 {
		return start, true
	}
	if end > len(haystack) {
		end = len(haystack)
	}
	if start+needleSizeWords > end {
		return 0, false
	}

	// rm = radix^(n-1) mod modulus, used to peel the outgoing word off
	// the rolling hash.
	rm := uint64(1)
	for i := 0; i < needleSizeWords-1; i++ {
		rm = (radix * rm) % modulus
	}

	var hash uint64
	i := start
	for count := 0; count < needleSizeWords; count++ {
		hash = hornerStep(haystack[i], hash, radix, modulus)
		i++
	}

	if hash == needleHash {
		return start, true
	}

	for i < end {
		outgoing := haystack[i-needleSizeWords]
		hash = (hash + modulus - (rm*uint64(outgoing))%modulus) % modulus
		hash = hornerStep(haystack[i], hash, radix, modulus)
		i++

		if hash == needleHash {
			return i - needleSizeWords, true
		}
	}

	return 0, false
}
