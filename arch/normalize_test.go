package arch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want uint32
	}{
		{"r-type untouched", 0x00010203, 0x00010203},
		{"j", 0x08010203, 0x08000000},
		{"jal", 0x0C010203, 0x0C000000},
		{"i-type", 0xF0010203, 0xF0010000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.word, R3000GTE); got != tt.want {
				t.Errorf("Normalize(0x%08X) = 0x%08X, want 0x%08X", tt.word, got, tt.want)
			}
		})
	}
}

func TestNormalizeMasksOnlyPrescribedBits(t *testing.T) {
	// For every family, bits outside the documented mask must equal the
	// input word's corresponding bits.
	families := []MIPSFamily{R3000GTE, R4000, R4000Allegrex, R5900}
	words := []uint32{0x00000000, 0xFFFFFFFF, 0x0C123456, 0x08ABCDEF, 0x8C010203}

	for _, family := range families {
		for _, word := range words {
			got := Normalize(word, family)

			var mask uint32
			switch word >> 26 {
			case 0:
				mask = 0xFFFFFFFF
			case 2, 3:
				mask = 0xFC000000
			default:
				mask = 0xFFFF0000
			}

			if got&mask != word&mask {
				t.Errorf("Normalize(0x%08X, %v) changed a masked-in bit: got 0x%08X", word, family, got)
			}
			if got&^mask != 0 {
				t.Errorf("Normalize(0x%08X, %v) left a masked-out bit set: got 0x%08X", word, family, got)
			}
		}
	}
}
