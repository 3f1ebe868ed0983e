// Package evaluate computes segment and function fingerprints for every
// object described by a linker map, plus an optional RODATA
// classification, and writes one objmatch.SegmentSignature per object to
// a sink.
package evaluate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/elfreader"
	"github.com/ttkb-oss/objmatch/fingerprint"
	"github.com/ttkb-oss/objmatch/objmatch"
	"github.com/ttkb-oss/objmatch/rabinkarp"
)

// Evaluator fingerprints objects against a fixed family/radix/modulus.
type Evaluator struct {
	Modulus uint64
	Radix   uint64
	Family  arch.MIPSFamily

	// Log receives debug-level progress messages. Nil is treated as a
	// discard logger so Evaluator works without any logging setup.
	Log *logrus.Entry
}

func (e *Evaluator) log() *logrus.Entry {
	if e.Log != nil {
		return e.Log
	}
	logger := logrus.New()
	logger.SetOutput(discardWriter{})
	return logrus.NewEntry(logger)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Evaluate fingerprints every object in objs against the section bytes
// it falls within, emitting one SegmentSignature per object, in order.
// An object whose TextVRAM lies in no section is skipped without output.
func (e *Evaluator) Evaluate(ctx context.Context, objs []objmatch.ObjectMap, sections elfreader.SectionMap, sink objmatch.Sink) error {
	for _, obj := range objs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		data, base, ok := sections.DataForVRAM(obj.TextVRAM)
		if !ok {
			e.log().WithField("object", obj.ObjectPath).Debug("no containing section, skipping")
			continue
		}

		sig, err := e.evaluateObject(obj, data, base)
		if err != nil {
			return fmt.Errorf("evaluate: object %s: %w", obj.ObjectPath, err)
		}

		if err := sink.EmitSegmentSignature(sig); err != nil {
			return fmt.Errorf("evaluate: emitting %s: %w", sig.Name, err)
		}
	}
	return nil
}

// evaluateObject computes one SegmentSignature. data is the raw section
// bytes containing this object's text range, and base is that section's
// starting VRAM address, so a VRAM address addr lies at data[addr-base].
func (e *Evaluator) evaluateObject(obj objmatch.ObjectMap, data []byte, base uint64) (objmatch.SegmentSignature, error) {
	relOffset := obj.TextVRAM - base
	trimmedSize := trimTrailingNOPs(data, int(relOffset), int(obj.Size), e.Family)

	segHash, err := e.sigForRange(data, int(relOffset), trimmedSize)
	if err != nil {
		return objmatch.SegmentSignature{}, err
	}

	var functions []objmatch.FunctionSignature
	for _, sym := range obj.TextSymbols {
		symRel := sym.VRAM - base
		hash, err := e.sigForRange(data, int(symRel), int(sym.Size))
		if err != nil {
			return objmatch.SegmentSignature{}, err
		}
		functions = append(functions, objmatch.FunctionSignature{
			Name:        sym.Name,
			Fingerprint: fingerprint.NewV0WithModulus(sym.Size, hash, e.Modulus),
			Size:        sym.Size,
		})
	}

	var rdata *objmatch.RODataSignature
	if obj.RData != nil {
		rdata = e.classifyRODATA(obj, data, base)
	}

	return objmatch.SegmentSignature{
		Name:        obj.Name(),
		Fingerprint: fingerprint.NewV0WithModulus(uint64(trimmedSize), segHash, e.Modulus),
		Size:        uint64(trimmedSize),
		Family:      e.Family,
		RData:       rdata,
		Functions:   functions,
	}, nil
}

// sigForRange hashes data[offset:offset+size] with a fresh Hasher,
// mirroring original_source/src/fingerprint.rs's sig_for_range.
func (e *Evaluator) sigForRange(data []byte, offset, size int) (uint64, error) {
	if size == 0 {
		return 0, nil
	}
	if offset < 0 || offset+size > len(data) {
		return 0, fmt.Errorf("evaluate: range [%d:%d) out of bounds (len %d)", offset, offset+size, len(data))
	}

	h := rabinkarp.NewWithModulus(e.Family, e.Radix, e.Modulus)
	if _, err := h.Write(data[offset : offset+size]); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// trimTrailingNOPs trims trailing all-zero words from
// data[offset:offset+size] down to at most one, since compilers insert a
// variable number of NOPs after a function's final jr $ra (spec's
// "Trailing-NOP trimming" design note). Returns the trimmed size.
func trimTrailingNOPs(data []byte, offset, size int, family arch.MIPSFamily) int {
	endian := arch.DefaultEndianness(family)
	trimmed := size
	sawZero := false

	for trimmed >= 4 {
		wordStart := offset + trimmed - 4
		if wordStart < 0 || wordStart+4 > len(data) {
			break
		}
		var b [4]byte
		copy(b[:], data[wordStart:wordStart+4])
		if arch.DecodeWord(b, endian) != 0 {
			break
		}
		sawZero = true
		trimmed -= 4
	}

	if sawZero {
		trimmed += 4
	}
	return trimmed
}
