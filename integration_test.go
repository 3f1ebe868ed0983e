package main

import (
	"context"
	"testing"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/elfreader"
	"github.com/ttkb-oss/objmatch/evaluate"
	"github.com/ttkb-oss/objmatch/objmatch"
	"github.com/ttkb-oss/objmatch/rabinkarp"
	"github.com/ttkb-oss/objmatch/scan"
)

type recordingSink struct {
	segments []objmatch.SegmentSignature
	offsets  []objmatch.SegmentOffset
}

func (r *recordingSink) EmitSegmentSignature(sig objmatch.SegmentSignature) error {
	r.segments = append(r.segments, sig)
	return nil
}

func (r *recordingSink) EmitSegmentOffset(off objmatch.SegmentOffset) error {
	r.offsets = append(r.offsets, off)
	return nil
}

const jrRA = 0x03E00008

// buildFunc encodes a function of n little-endian words: (n-1) NOPs
// followed by a trailing "jr $ra", so trailing-NOP trimming never
// shortens it.
func buildFunc(words int) []byte {
	out := make([]byte, 0, words*4)
	for i := 0; i < words-1; i++ {
		out = append(out, 0, 0, 0, 0)
	}
	out = append(out, byte(jrRA&0xFF), byte(jrRA>>8&0xFF), byte(jrRA>>16&0xFF), byte(jrRA>>24))
	return out
}

// TestFingerprintAndScanReferenceScenario reproduces the documented
// worked example: fingerprinting a reference map+ELF pair produces
// "sword" (goodbye_world + hello_world) and "servant_common"
// (local_function, global_function, global_function_2); scanning the
// corresponding raw image locates goodbye_world at byte offset 0x988.
func TestFingerprintAndScanReferenceScenario(t *testing.T) {
	const textVRAM = 0x80010000
	const romStart = 0x00000400

	goodbyeWorld := buildFunc(4)  // 0x10 bytes
	helloWorld := buildFunc(28)   // 0x70 bytes
	localFunction := buildFunc(8) // 0x20 bytes
	globalFunction := buildFunc(7) // 0x1C bytes
	globalFunction2 := buildFunc(6) // 0x18 bytes

	swordBytes := append(append([]byte{}, goodbyeWorld...), helloWorld...)
	servantBytes := append(append(append([]byte{}, localFunction...), globalFunction...), globalFunction2...)
	allText := append(append([]byte{}, swordBytes...), servantBytes...)

	if len(swordBytes) != 0x80 {
		t.Fatalf("sword segment built as %#x bytes, want 0x80", len(swordBytes))
	}
	if len(servantBytes) != 0x54 {
		t.Fatalf("servant_common segment built as %#x bytes, want 0x54", len(servantBytes))
	}

	servantVRAM := uint64(textVRAM + len(swordBytes))

	objs := []objmatch.ObjectMap{
		{
			ObjectPath:            "sword.c.o",
			TextVRAM:              textVRAM,
			ContainingSegmentVROM: romStart,
			Size:                  uint64(len(swordBytes)),
			TextSymbols: []objmatch.TextSymbol{
				{Name: "goodbye_world", VRAM: textVRAM, Size: uint64(len(goodbyeWorld))},
				{Name: "hello_world", VRAM: textVRAM + uint64(len(goodbyeWorld)), Size: uint64(len(helloWorld))},
			},
		},
		{
			ObjectPath:            "servant_common.c.o",
			TextVRAM:              servantVRAM,
			ContainingSegmentVROM: romStart,
			Size:                  uint64(len(servantBytes)),
			TextSymbols: []objmatch.TextSymbol{
				{Name: "local_function", VRAM: servantVRAM, Size: uint64(len(localFunction))},
				{Name: "global_function", VRAM: servantVRAM + uint64(len(localFunction)), Size: uint64(len(globalFunction))},
				{Name: "global_function_2", VRAM: servantVRAM + uint64(len(localFunction)) + uint64(len(globalFunction)), Size: uint64(len(globalFunction2))},
			},
		},
	}

	sections := elfreader.NewStaticSectionMap(map[uint64][]byte{textVRAM: allText})

	e := &evaluate.Evaluator{
		Modulus: rabinkarp.DefaultModulus,
		Radix:   rabinkarp.DefaultRadix,
		Family:  arch.R3000GTE,
	}

	libSink := &recordingSink{}
	if err := e.Evaluate(context.Background(), objs, sections, libSink); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(libSink.segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(libSink.segments))
	}

	byName := make(map[string]objmatch.SegmentSignature, 2)
	for _, seg := range libSink.segments {
		byName[seg.Name] = seg
	}

	sword, ok := byName["sword"]
	if !ok || sword.Size != 0x80 || len(sword.Functions) != 2 {
		t.Fatalf("sword segment mismatch: %+v", sword)
	}
	if sword.Functions[0].Name != "goodbye_world" || sword.Functions[0].Size != 0x10 {
		t.Errorf("sword.Functions[0] = %+v, want goodbye_world size 0x10", sword.Functions[0])
	}
	if sword.Functions[1].Name != "hello_world" || sword.Functions[1].Size != 0x70 {
		t.Errorf("sword.Functions[1] = %+v, want hello_world size 0x70", sword.Functions[1])
	}

	servant, ok := byName["servant_common"]
	if !ok || servant.Size != 0x54 || len(servant.Functions) != 3 {
		t.Fatalf("servant_common segment mismatch: %+v", servant)
	}
	wantNames := []string{"local_function", "global_function", "global_function_2"}
	for i, want := range wantNames {
		if servant.Functions[i].Name != want {
			t.Errorf("servant_common.Functions[%d].Name = %q, want %q", i, servant.Functions[i].Name, want)
		}
	}

	// Scan a raw image where the text region starts at byte offset 0x988.
	padding := make([]byte, 0x988)
	haystack := append(append([]byte{}, padding...), allText...)

	s := &scan.Scanner{
		Family:  arch.R3000GTE,
		Modulus: rabinkarp.DefaultModulus,
		Radix:   rabinkarp.DefaultRadix,
	}

	scanSink := &recordingSink{}
	if err := s.Scan(context.Background(), libSink.segments, haystack, scanSink); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var swordOffset *objmatch.SegmentOffset
	for i := range scanSink.offsets {
		if scanSink.offsets[i].Name == "sword" {
			swordOffset = &scanSink.offsets[i]
		}
	}
	if swordOffset == nil {
		t.Fatal("sword not located in scan results")
	}
	if swordOffset.Offset != 0x988 {
		t.Errorf("sword located at %#x, want 0x988", swordOffset.Offset)
	}
	if got := swordOffset.Symbols["goodbye_world"]; got != 0x988 {
		t.Errorf("goodbye_world located at %#x, want 0x988", got)
	}
}
