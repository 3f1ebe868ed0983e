// Package scan locates fingerprinted segments and functions inside a raw
// binary image, resolving overlapping candidates and ambiguous names,
// and optionally locating each segment's RODATA jump table.
package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/objmatch"
	"github.com/ttkb-oss/objmatch/rabinkarp"
)

// claimPersistsOnPartialMatch records the decision that an accepted
// segment-level candidate whose function subset is incomplete still
// keeps its address-space claim, rather than releasing it for a later
// candidate to reuse. This is the spec's stated default behavior.
const claimPersistsOnPartialMatch = true

// Scanner locates segments from a fingerprint library inside a binary.
type Scanner struct {
	Family arch.MIPSFamily
	// Modulus applies to fingerprints that carry no modulus of their own;
	// a fingerprint's explicit modulus takes precedence. Zero means
	// rabinkarp.DefaultModulus.
	Modulus uint64
	Radix   uint64

	// VRAMStart is the haystack's load address, required only to locate
	// RODATA (C7). Nil disables RODATA location.
	VRAMStart *uint64

	// Log receives debug-level skip/progress messages. Nil is treated as
	// a discard logger.
	Log *logrus.Entry
}

func (s *Scanner) log() *logrus.Entry {
	if s.Log != nil {
		return s.Log
	}
	logger := logrus.New()
	logger.Out = discardWriter{}
	return logrus.NewEntry(logger)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// dedupedSegment is one distinct segment fingerprint from the library,
// with its vote count and the name list used for bestName resolution.
type dedupedSegment struct {
	sig        objmatch.SegmentSignature
	occurrence int
	names      []string // in first-insertion order, for bestName tie-breaking
}

// claim is one accepted, non-overlapping [offset, offset+size) interval
// in the haystack.
type claim struct {
	offset, size int
}

func (c claim) end() int { return c.offset + c.size }

// claimSet is a flat sequence of accepted intervals (spec §9: a balanced
// interval tree is the stated future upgrade once libraries reach tens
// of thousands of segments; not needed at this corpus size).
type claimSet struct {
	claims []claim
}

// overlaps reports whether [offset, offset+size) conflicts with any
// already-accepted claim: its start lies inside one, or its end lies
// strictly inside one.
func (cs *claimSet) overlaps(offset, size int) bool {
	end := offset + size
	for _, c := range cs.claims {
		if offset >= c.offset && offset < c.end() {
			return true
		}
		if end > c.offset && end < c.end() {
			return true
		}
	}
	return false
}

func (cs *claimSet) add(offset, size int) {
	cs.claims = append(cs.claims, claim{offset: offset, size: size})
}

// Scan locates every library segment in haystack and emits a
// SegmentOffset for each one whose full function subset is found.
func (s *Scanner) Scan(ctx context.Context, library []objmatch.SegmentSignature, haystack []byte, sink objmatch.Sink) error {
	if len(library) == 0 {
		return nil
	}

	names := buildNameFrequency(library)
	deduped := dedupeAndSort(library, names)

	words := rabinkarp.DecodeWords(haystack, s.Family)

	var claims claimSet
	skippedRODATA := 0

	for _, seg := range deduped {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		segSize := int(seg.sig.Size)
		segModulus := s.modulus()
		if m := seg.sig.Fingerprint.Modulus; m != nil {
			segModulus = *m
		}
		offset, found := rabinkarp.FindWords(seg.sig.Fingerprint.Hash, segSize/4, words, 0, len(words), s.Radix, segModulus)
		if !found {
			continue
		}
		byteOffset := offset * 4

		if claims.overlaps(byteOffset, segSize) {
			continue
		}
		claims.add(byteOffset, segSize)

		symbols := make(map[string]uint64, len(seg.sig.Functions))
		currentWord := offset
		endWord := offset + segSize/4
		hits := 0

		for _, fn := range seg.sig.Functions {
			fnModulus := s.modulus()
			if m := fn.Fingerprint.Modulus; m != nil {
				fnModulus = *m
			}
			fnOffset, ok := rabinkarp.FindWords(fn.Fingerprint.Hash, int(fn.Size)/4, words, currentWord, endWord, s.Radix, fnModulus)
			if !ok {
				continue
			}
			symbols[fn.Name] = uint64(fnOffset * 4)
			currentWord = fnOffset + int(fn.Size)/4
			hits++
		}

		if hits != len(seg.sig.Functions) {
			// claimPersistsOnPartialMatch: the claim added above stays in
			// place even though this candidate is dropped, since it
			// matched at the segment level.
			s.log().WithField("segment", seg.sig.Name).Debug("incomplete function subset, skipping")
			continue
		}

		name := bestName(seg.names, seg.sig.Name)

		var rdata *objmatch.RODataOffset
		if seg.sig.RData != nil && s.VRAMStart != nil {
			located, ok := locateRODATA(*seg.sig.RData, byteOffset, seg.sig, *s.VRAMStart, words)
			if ok {
				rdata = &located
			} else {
				skippedRODATA++
			}
		}

		if err := sink.EmitSegmentOffset(objmatch.SegmentOffset{
			Name:    name,
			Offset:  uint64(byteOffset),
			Size:    seg.sig.Size,
			RData:   rdata,
			Symbols: symbols,
		}); err != nil {
			return fmt.Errorf("scan: emitting %s: %w", name, err)
		}
	}

	if skippedRODATA > 0 {
		s.log().WithField("count", skippedRODATA).Debug("RODATA classifications not located by this version")
	}

	return nil
}

func (s *Scanner) modulus() uint64 {
	if s.Modulus == 0 {
		return rabinkarp.DefaultModulus
	}
	return s.Modulus
}

// buildNameFrequency appends each segment's declared name to the list
// keyed by its fingerprint hash, in library order (first-insertion order
// for bestName's tie-break).
func buildNameFrequency(library []objmatch.SegmentSignature) map[uint64][]string {
	names := make(map[uint64][]string)
	for _, seg := range library {
		h := seg.Fingerprint.Hash
		names[h] = append(names[h], seg.Name)
	}
	return names
}

// dedupeAndSort collapses the library into one entry per distinct
// segment fingerprint, counting occurrences, then sorts by (size desc,
// occurrence desc): larger segments carry more entropy, and frequently
// seen ones are more likely to be real.
func dedupeAndSort(library []objmatch.SegmentSignature, names map[uint64][]string) []dedupedSegment {
	order := make([]uint64, 0, len(library))
	byHash := make(map[uint64]*dedupedSegment, len(library))

	for _, seg := range library {
		h := seg.Fingerprint.Hash
		if existing, ok := byHash[h]; ok {
			existing.occurrence++
			continue
		}
		order = append(order, h)
		byHash[h] = &dedupedSegment{sig: seg, occurrence: 1, names: names[h]}
	}

	out := make([]dedupedSegment, 0, len(order))
	for _, h := range order {
		out = append(out, *byHash[h])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].sig.Size != out[j].sig.Size {
			return out[i].sig.Size > out[j].sig.Size
		}
		return out[i].occurrence > out[j].occurrence
	})

	return out
}

// bestName picks the most frequent entry in names, ties broken by first
// insertion order. An empty list keeps fallback unchanged.
func bestName(names []string, fallback string) string {
	if len(names) == 0 {
		return fallback
	}

	counts := make(map[string]int, len(names))
	firstSeen := make(map[string]int, len(names))
	for i, n := range names {
		counts[n]++
		if _, ok := firstSeen[n]; !ok {
			firstSeen[n] = i
		}
	}

	best := names[0]
	bestCount := counts[best]
	for n, c := range counts {
		if c > bestCount || (c == bestCount && firstSeen[n] < firstSeen[best]) {
			best = n
			bestCount = c
		}
	}
	return best
}
