package arch

// Normalize masks the link-address-sensitive bits out of a 32-bit MIPS
// instruction word, leaving a canonical word that is stable across
// relinking at a different load address.
//
// word must already be in natural (big- or little-endian per family)
// interpretation; see DecodeWord.
//
// The family parameter is accepted, not yet consulted: every caller
// already has a family value in hand, and a richer per-dialect decode
// table is the natural extension point if a family-specific instruction
// ever needs different masking. Spec §9 Open Question 2 notes the
// classifier some decompilers use has additional opcode-28/31 cases;
// normalization is the authoritative behavior and does not implement them.
func Normalize(word uint32, _ MIPSFamily) uint32 {
	switch word >> 26 {
	case 0:
		// R-type (SPECIAL): register fields only, no link-time address.
		return word
	case 2, 3:
		// J-type (j, jal): drop the 26-bit link-time target.
		return word & 0xFC000000
	default:
		// I-type and coprocessor/immediate variants: drop the 16-bit immediate.
		return word & 0xFFFF0000
	}
}
