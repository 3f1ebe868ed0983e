package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/fingerprint"
	"github.com/ttkb-oss/objmatch/objmatch"
	"github.com/ttkb-oss/objmatch/rabinkarp"
)

type memSink struct {
	offs []objmatch.SegmentOffset
}

func (m *memSink) EmitSegmentSignature(objmatch.SegmentSignature) error { return nil }
func (m *memSink) EmitSegmentOffset(o objmatch.SegmentOffset) error {
	m.offs = append(m.offs, o)
	return nil
}

func leWord(w uint32) [4]byte {
	return [4]byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func buildBytes(words ...uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		b := leWord(w)
		out = append(out, b[:]...)
	}
	return out
}

func hashOf(t *testing.T, family arch.MIPSFamily, data []byte) uint64 {
	t.Helper()
	h := rabinkarp.New(family)
	_, err := h.Write(data)
	require.NoError(t, err)
	return h.Sum64()
}

func TestScanFindsSingleSegmentNoFunctions(t *testing.T) {
	const jrRA = 0x03E00008
	padding := buildBytes(0, 0, 0)
	segment := buildBytes(jrRA, 0)
	haystack := append(append([]byte{}, padding...), segment...)

	family := arch.R3000GTE
	lib := []objmatch.SegmentSignature{
		{
			Name:        "sword",
			Fingerprint: fingerprint.NewV0(uint64(len(segment)), hashOf(t, family, segment)),
			Size:        uint64(len(segment)),
			Family:      family,
		},
	}

	s := &Scanner{Family: family, Modulus: rabinkarp.DefaultModulus, Radix: rabinkarp.DefaultRadix}
	sink := &memSink{}
	require.NoError(t, s.Scan(context.Background(), lib, haystack, sink))

	require.Len(t, sink.offs, 1)
	assert.Equal(t, "sword", sink.offs[0].Name)
	assert.Equal(t, uint64(len(padding)), sink.offs[0].Offset)
}

func TestScanFindsFunctionsInDeclaredOrder(t *testing.T) {
	const jrRA = 0x03E00008
	goodbye := buildBytes(jrRA, 0)
	hello := buildBytes(jrRA, 0, 0)
	segment := append(append([]byte{}, goodbye...), hello...)

	family := arch.R3000GTE
	lib := []objmatch.SegmentSignature{
		{
			Name:        "sword",
			Fingerprint: fingerprint.NewV0(uint64(len(segment)), hashOf(t, family, segment)),
			Size:        uint64(len(segment)),
			Family:      family,
			Functions: []objmatch.FunctionSignature{
				{Name: "goodbye_world", Fingerprint: fingerprint.NewV0(uint64(len(goodbye)), hashOf(t, family, goodbye)), Size: uint64(len(goodbye))},
				{Name: "hello_world", Fingerprint: fingerprint.NewV0(uint64(len(hello)), hashOf(t, family, hello)), Size: uint64(len(hello))},
			},
		},
	}

	s := &Scanner{Family: family, Modulus: rabinkarp.DefaultModulus, Radix: rabinkarp.DefaultRadix}
	sink := &memSink{}
	require.NoError(t, s.Scan(context.Background(), lib, segment, sink))

	require.Len(t, sink.offs, 1)
	off := sink.offs[0]
	require.Len(t, off.Symbols, 2)
	assert.Equal(t, uint64(0), off.Symbols["goodbye_world"])
	assert.Equal(t, uint64(len(goodbye)), off.Symbols["hello_world"])
}

func TestScanDropsCandidateWithIncompleteFunctionSubset(t *testing.T) {
	const jrRA = 0x03E00008
	segment := buildBytes(jrRA, 0, 0)

	family := arch.R3000GTE
	missingFnHash := hashOf(t, family, buildBytes(0xDEADBEEF))
	lib := []objmatch.SegmentSignature{
		{
			Name:        "sword",
			Fingerprint: fingerprint.NewV0(uint64(len(segment)), hashOf(t, family, segment)),
			Size:        uint64(len(segment)),
			Family:      family,
			Functions: []objmatch.FunctionSignature{
				{Name: "missing", Fingerprint: fingerprint.NewV0(4, missingFnHash), Size: 4},
			},
		},
	}

	s := &Scanner{Family: family, Modulus: rabinkarp.DefaultModulus, Radix: rabinkarp.DefaultRadix}
	sink := &memSink{}
	require.NoError(t, s.Scan(context.Background(), lib, segment, sink))
	assert.Empty(t, sink.offs)
}

func TestScanNonOverlappingClaims(t *testing.T) {
	const jrRA = 0x03E00008
	a := buildBytes(jrRA, 0)
	b := buildBytes(jrRA, 0, 0)
	haystack := append(append([]byte{}, a...), b...)

	family := arch.R3000GTE
	lib := []objmatch.SegmentSignature{
		{Name: "a", Fingerprint: fingerprint.NewV0(uint64(len(a)), hashOf(t, family, a)), Size: uint64(len(a)), Family: family},
		{Name: "b", Fingerprint: fingerprint.NewV0(uint64(len(b)), hashOf(t, family, b)), Size: uint64(len(b)), Family: family},
	}

	s := &Scanner{Family: family, Modulus: rabinkarp.DefaultModulus, Radix: rabinkarp.DefaultRadix}
	sink := &memSink{}
	require.NoError(t, s.Scan(context.Background(), lib, haystack, sink))

	require.Len(t, sink.offs, 2)
	for i := 0; i < len(sink.offs); i++ {
		for j := i + 1; j < len(sink.offs); j++ {
			oi, oj := sink.offs[i], sink.offs[j]
			overlap := oi.Offset < oj.Offset+oj.Size && oj.Offset < oi.Offset+oi.Size
			assert.False(t, overlap, "claims %v and %v overlap", oi, oj)
		}
	}
}

func TestBestNameMajorityVote(t *testing.T) {
	got := bestName([]string{"a", "b", "b", "a", "b"}, "fallback")
	assert.Equal(t, "b", got)
}

func TestBestNameTiesBreakByFirstInsertion(t *testing.T) {
	got := bestName([]string{"a", "b"}, "fallback")
	assert.Equal(t, "a", got)
}

func TestBestNameEmptyListKeepsFallback(t *testing.T) {
	assert.Equal(t, "fallback", bestName(nil, "fallback"))
}

func TestClaimSetOverlapDetection(t *testing.T) {
	var cs claimSet
	cs.add(10, 10) // [10, 20)

	assert.True(t, cs.overlaps(10, 5))  // start inside
	assert.True(t, cs.overlaps(5, 10))  // end strictly inside [10,20) at 15
	assert.False(t, cs.overlaps(20, 5)) // starts exactly at end, not inside
	assert.False(t, cs.overlaps(0, 10)) // ends exactly at start, not inside
}

func TestDedupeAndSortOrdersBySizeThenOccurrence(t *testing.T) {
	family := arch.R3000GTE
	lib := []objmatch.SegmentSignature{
		{Name: "small", Fingerprint: fingerprint.NewV0(4, 1), Size: 4, Family: family},
		{Name: "big", Fingerprint: fingerprint.NewV0(8, 2), Size: 8, Family: family},
		{Name: "small-again", Fingerprint: fingerprint.NewV0(4, 1), Size: 4, Family: family},
	}
	names := buildNameFrequency(lib)
	deduped := dedupeAndSort(lib, names)

	require.Len(t, deduped, 2)
	assert.Equal(t, "big", deduped[0].sig.Name)
	assert.Equal(t, "small", deduped[1].sig.Name)
	assert.Equal(t, 2, deduped[1].occurrence)
}
