package scan

import "github.com/ttkb-oss/objmatch/objmatch"

// locateRODATA finds the byte offset of segment's RODATA block inside
// words (the whole decoded haystack), given the segment's matched
// textOffset and the haystack's load address vramStart. Implements
// OnlyJumpTables and EndsWithJumpTable only: the remaining kinds are not
// located by this version (spec's explicit design note) and return
// ok=false, counted by the caller instead of silently dropped without
// trace.
func locateRODATA(sig objmatch.RODataSignature, textOffset int, segment objmatch.SegmentSignature, vramStart uint64, words []uint32) (objmatch.RODataOffset, bool) {
	segmentStart := vramStart + uint64(textOffset)
	segmentEnd := segmentStart + segment.Size
	textEndWord := (textOffset + int(segment.Size)) / 4
	textStartWord := textOffset / 4

	switch sig.Kind {
	case objmatch.OnlyJumpTables:
		return locateOnlyJumpTables(sig, textStartWord, textEndWord, segmentStart, segmentEnd, words)
	case objmatch.EndsWithJumpTable:
		return locateEndsWithJumpTable(sig, textStartWord, textEndWord, segmentStart, segmentEnd, words)
	default:
		// not located: see spec §4.7 design note
		return objmatch.RODataOffset{}, false
	}
}

// locateOnlyJumpTables scans outside the text region for the first
// consecutive run of words whose decoded value lies strictly inside
// (segmentStart, segmentEnd), returning the first run whose length
// equals sig.Size.
func locateOnlyJumpTables(sig objmatch.RODataSignature, textStartWord, textEndWord int, segmentStart, segmentEnd uint64, words []uint32) (objmatch.RODataOffset, bool) {
	runStart := -1
	runLen := 0

	for i, w := range words {
		if i >= textStartWord && i < textEndWord {
			runStart, runLen = -1, 0
			continue
		}

		if uint64(w) > segmentStart && uint64(w) < segmentEnd {
			if runStart == -1 {
				runStart = i
			}
			runLen += 4
			if uint64(runLen) == sig.Size {
				return objmatch.RODataOffset{Offset: uint64(runStart * 4), Size: sig.Size}, true
			}
		} else {
			runStart, runLen = -1, 0
		}
	}

	return objmatch.RODataOffset{}, false
}

// locateEndsWithJumpTable finds the last word outside the text region
// whose decoded value lies inside (segmentStart, segmentEnd): the block
// ends there, so its starting offset is lastWordOffset - sig.Size + 4.
func locateEndsWithJumpTable(sig objmatch.RODataSignature, textStartWord, textEndWord int, segmentStart, segmentEnd uint64, words []uint32) (objmatch.RODataOffset, bool) {
	lastWord := -1

	for i, w := range words {
		if i >= textStartWord && i < textEndWord {
			continue
		}
		if uint64(w) > segmentStart && uint64(w) < segmentEnd {
			lastWord = i
		}
	}

	if lastWord == -1 {
		return objmatch.RODataOffset{}, false
	}

	lastWordOffset := uint64(lastWord * 4)
	if lastWordOffset+4 < sig.Size {
		return objmatch.RODataOffset{}, false
	}
	offset := lastWordOffset - sig.Size + 4
	if offset+sig.Size > uint64(len(words))*4 {
		return objmatch.RODataOffset{}, false
	}

	return objmatch.RODataOffset{Offset: offset, Size: sig.Size}, true
}
