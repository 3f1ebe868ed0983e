package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ttkb-oss/objmatch/arch"
	"github.com/ttkb-oss/objmatch/config"
	"github.com/ttkb-oss/objmatch/elfreader"
	"github.com/ttkb-oss/objmatch/evaluate"
	"github.com/ttkb-oss/objmatch/mapfile"
	"github.com/ttkb-oss/objmatch/objmatch"
	"github.com/ttkb-oss/objmatch/scan"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		modulusFlag = flag.String("q", "", "Hash modulus in hex, 0x prefix optional (default: config/0xFFFFFFEF)")
		outFlag     = flag.String("o", "", "Output path (default: stdout)")
		verboseFlag = flag.Bool("v", false, "Verbose logging")
		configFlag  = flag.String("config", "", "Path to TOML config file (default: XDG config path)")
		nativeFlag  = flag.Bool("native", false, "Treat the input image as .v64/.n64 and byte-swap to .z64 before use")
		vramStart   = flag.String("vram-start", "", "Hex load address of the scan target, required to locate RODATA")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("objmatch %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "objmatch: loading config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(*verboseFlag || cfg.Output.Verbose)

	modulus, err := resolveModulus(*modulusFlag, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "objmatch: %v\n", err)
		os.Exit(1)
	}

	out, closeOut, err := resolveOutput(*outFlag, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "objmatch: opening output: %v\n", err)
		os.Exit(1)
	}
	defer closeOut()

	cmd, rest := args[0], args[1:]

	var runErr error
	switch cmd {
	case "fingerprint":
		runErr = runFingerprint(rest, modulus, out, log)
	case "scan":
		runErr = runScan(rest, modulus, *vramStart, *nativeFlag, out, log)
	case "inspect":
		runErr = runInspect(rest, *nativeFlag, out)
	default:
		fmt.Fprintf(os.Stderr, "objmatch: unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "objmatch: %v\n", runErr)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func newLogger(verbose bool) *logrus.Entry {
	logger := logrus.New()
	logger.Out = os.Stderr
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logrus.NewEntry(logger)
}

func resolveModulus(flagVal string, cfg *config.Config) (uint64, error) {
	if flagVal == "" {
		if cfg.Hash.Modulus != 0 {
			return cfg.Hash.Modulus, nil
		}
		return 0xFFFFFFEF, nil
	}
	return parseUint(flagVal)
}

func parseUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

func resolveOutput(flagVal string, cfg *config.Config) (io.Writer, func(), error) {
	path := flagVal
	if path == "" {
		path = cfg.Output.Path
	}
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path) // #nosec G304 -- path comes from the operator's own CLI flag or config file
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// runFingerprint implements `fingerprint <map> <elf>`: reads the linker
// map and ELF symbol table, evaluates every text segment into a
// fingerprint library, and emits one YAML document per segment.
func runFingerprint(args []string, modulus uint64, out io.Writer, log *logrus.Entry) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: objmatch fingerprint <map> <elf>")
	}
	mapPath, elfPath := args[0], args[1]

	family, ok, err := elfreader.FamilyOf(elfPath)
	if err != nil {
		return fmt.Errorf("reading ELF: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s is not a MIPS ELF", elfPath)
	}

	symbols, err := elfreader.FunctionSymbols(elfPath)
	if err != nil {
		return fmt.Errorf("reading function symbols: %w", err)
	}

	sections, err := elfreader.TextSections(elfPath)
	if err != nil {
		return fmt.Errorf("reading text sections: %w", err)
	}

	objs, err := mapfile.ReadSegments(mapPath, "text", symbols)
	if err != nil {
		return fmt.Errorf("reading map: %w", err)
	}

	e := &evaluate.Evaluator{
		Modulus: modulus,
		Radix:   defaultRadix,
		Family:  family,
		Log:     log,
	}

	sink := objmatch.NewYAMLSink(out)
	return e.Evaluate(context.Background(), objs, sections, sink)
}

const defaultRadix = 0x100000000

// runScan implements `scan [-vram-start hex] <lib>... <bin>`: loads one
// or more fingerprint libraries, concatenates them, and scans the raw
// binary for every segment.
func runScan(args []string, modulus uint64, vramStartHex string, native bool, out io.Writer, log *logrus.Entry) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.StringVar(&vramStartHex, "vram-start", vramStartHex, "Hex load address of the scan target, required to locate RODATA")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()
	if len(args) < 2 {
		return fmt.Errorf("usage: objmatch scan [-vram-start hex] <lib>... <bin>")
	}
	libPaths, binPath := args[:len(args)-1], args[len(args)-1]

	var library []objmatch.SegmentSignature
	for _, p := range libPaths {
		segs, err := readLibraryFile(p)
		if err != nil {
			return fmt.Errorf("reading library %s: %w", p, err)
		}
		library = append(library, segs...)
	}
	if len(library) == 0 {
		return fmt.Errorf("no segments loaded from %v", libPaths)
	}

	haystack, err := os.ReadFile(binPath) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return fmt.Errorf("reading %s: %w", binPath, err)
	}
	if native {
		normalizeNative(haystack)
	}

	s := &scan.Scanner{
		Family:  library[0].Family,
		Modulus: modulus,
		Radix:   defaultRadix,
		Log:     log,
	}
	if vramStartHex != "" {
		v, err := parseUint(vramStartHex)
		if err != nil {
			return fmt.Errorf("parsing -vram-start: %w", err)
		}
		s.VRAMStart = &v
	}

	sink := objmatch.NewYAMLSink(out)
	return s.Scan(context.Background(), library, haystack, sink)
}

func readLibraryFile(path string) ([]objmatch.SegmentSignature, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return objmatch.ReadLibrary(f)
}

// normalizeNative byte-swaps a .v64/.n64 image in place to the native
// .z64 big-endian word order, detected by arch.DetermineFormat's count of
// "jr $ra" encodings.
func normalizeNative(data []byte) {
	format, ok := arch.DetermineFormat(data)
	if !ok {
		return
	}
	switch format {
	case arch.LittleEndian:
		arch.SwapBytes32(data)
	case arch.BigSwapped:
		arch.SwapBytes16(data)
	case arch.LittleSwapped:
		arch.SwapBytes16(data)
		arch.SwapBytes32(data)
	case arch.BigEndian:
		// already native
	}
}

// runInspect implements `inspect elf <path>` and `inspect bin <path>`:
// read-only visibility into a binary's layout, no fingerprint output.
func runInspect(args []string, native bool, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: objmatch inspect elf|bin <path>")
	}
	kind, path := args[0], args[1]

	switch kind {
	case "elf":
		return inspectELF(path, out)
	case "bin":
		return inspectBin(path, native, out)
	default:
		return fmt.Errorf("unknown inspect target %q, want elf or bin", kind)
	}
}

func inspectELF(path string, out io.Writer) error {
	family, ok, err := elfreader.FamilyOf(path)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "not a MIPS ELF\n")
		return nil
	}
	fmt.Fprintf(out, "family: %s\n", family)

	symbols, err := elfreader.FunctionSymbols(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "function symbols: %d\n", len(symbols))
	for _, s := range symbols {
		fmt.Fprintf(out, "  %-32s vram=0x%08X size=0x%X\n", s.Name, s.VRAM, s.Size)
	}
	return nil
}

func inspectBin(path string, native bool, out io.Writer) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is an explicit CLI argument
	if err != nil {
		return err
	}
	if native {
		normalizeNative(data)
	}
	format, ok := arch.DetermineFormat(data)
	if !ok {
		fmt.Fprintf(out, "format: unrecognized (no jr $ra pattern found)\n")
		return nil
	}
	fmt.Fprintf(out, "format: %s\n", format)
	fmt.Fprintf(out, "size: 0x%X bytes\n", len(data))
	return nil
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `objmatch %s

Usage:
  objmatch [global flags] fingerprint <map> <elf>
  objmatch [global flags] scan [-vram-start hex] <lib>... <bin>
  objmatch [global flags] inspect elf <path>
  objmatch [global flags] inspect bin <path>

Global flags:
  -q HEX        Hash modulus (default: config value, else 0xFFFFFFEF)
  -o PATH       Output path (default: stdout)
  -v            Verbose logging
  -config PATH  TOML config file (default: XDG config path)
  -native       Byte-swap a .v64/.n64 image to .z64 before scanning/inspecting
  -version      Show version information
`, Version)
}
