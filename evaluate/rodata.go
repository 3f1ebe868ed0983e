package evaluate

import (
	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/objmatch"
)

// classifyRODATA classifies obj's RODATA block by reading its words as
// potential code pointers into obj's own text symbols. Ported 1:1 from
// original_source/src/fingerprint.rs:calculate_rodata_signature,
// including its starts-with check: "starts with" tests the block's
// loop-invariant starting offset against zero, not the position of the
// word currently being examined, so a hit anywhere in the block sets it
// whenever the block itself starts at offset zero.
//
// A word counts as a jump-table entry when it lies inside some text
// symbol's [VRAM, VRAM+Size) range, a symbol's own start address included.
func (e *Evaluator) classifyRODATA(obj objmatch.ObjectMap, data []byte, base uint64) *objmatch.RODataSignature {
	rdata := obj.RData
	endian := arch.DefaultEndianness(e.Family)

	size := rdata.Size
	offset := rdata.VROM - obj.ContainingSegmentVROM

	startsWithJumpTable := false
	foundNonJumpTableEntry := false
	lastEntryWasJumpTable := false

	for i := uint64(0); i < size; i += 4 {
		pos := offset + i
		if pos+4 > uint64(len(data)) {
			break
		}
		var b [4]byte
		copy(b[:], data[pos:pos+4])
		addr := arch.DecodeWord(b, endian)

		if obj.IsAddressInsideFunction(uint64(addr)) {
			lastEntryWasJumpTable = true
			if offset == 0 {
				startsWithJumpTable = true
			}
		} else {
			lastEntryWasJumpTable = false
			foundNonJumpTableEntry = true
		}
	}

	if !foundNonJumpTableEntry {
		return &objmatch.RODataSignature{Kind: objmatch.OnlyJumpTables, Size: size}
	}
	if startsWithJumpTable && lastEntryWasJumpTable {
		return &objmatch.RODataSignature{Kind: objmatch.StartsAndEndsWithJumpTable, Size: size}
	}
	if startsWithJumpTable {
		return &objmatch.RODataSignature{Kind: objmatch.StartsWithJumpTable, Size: size}
	}
	if lastEntryWasJumpTable {
		return &objmatch.RODataSignature{Kind: objmatch.EndsWithJumpTable, Size: size}
	}
	return &objmatch.RODataSignature{Kind: objmatch.Unknown, Size: size}
}
