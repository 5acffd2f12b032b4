// pl0vm runs or analyzes compiled PL/0 programs.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/AntonioAlbt/pl0vm/manifest"
	"github.com/AntonioAlbt/pl0vm/profile"
	"github.com/AntonioAlbt/pl0vm/vm"
	"github.com/AntonioAlbt/pl0vm/vm/report"
)

var errorLine = color.New(color.FgRed)

func main() {
	var (
		analyze   bool
		debug     bool
		doProfile bool
		dumpPath  string
	)
	flag.BoolVar(&analyze, "analyze", false, "Output bytecode analysis information. (doesn't run the program)")
	flag.BoolVar(&analyze, "a", false, "Shorthand for --analyze")
	flag.BoolVar(&debug, "debug", false, "Output debug information while running the program. (outputs operations being run, with additional information)")
	flag.BoolVar(&debug, "d", false, "Shorthand for --debug")
	flag.BoolVar(&doProfile, "profile", false, "Record opcode execution counts to the profile database")
	flag.StringVar(&dumpPath, "dump", "", "Write the analysis as CBOR to the given file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <filename>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Printf("View usage information with: %s --help\n", os.Args[0])
		return
	}
	filename := flag.Arg(0)

	cfg, err := manifest.LoadOrDefault(filepath.Dir(filename))
	if err != nil {
		fail("loading configuration: %v", err)
	}

	setupColor(cfg)
	setupLogging(cfg, debug)

	prog, err := vm.LoadProgramFile(filename)
	if err != nil {
		fail("loading %s: %v", filename, err)
	}

	if analyze {
		text, err := prog.Disassemble()
		if err != nil {
			fail("analyzing %s: %v", filename, err)
		}
		fmt.Print(text)
		if dumpPath != "" {
			if err := writeDump(prog, dumpPath); err != nil {
				fail("writing dump: %v", err)
			}
		}
		return
	}

	layout, err := prog.Scan()
	if err != nil {
		fail("scanning %s: %v", filename, err)
	}

	interp := vm.NewInterp(prog, layout, os.Stdin, os.Stdout)
	runErr := interp.Run()

	if doProfile || cfg.Profile.Enabled {
		if err := recordProfile(cfg, filename, interp); err != nil {
			errorLine.Fprintf(os.Stderr, "recording profile: %v\n", err)
		}
	}

	if runErr != nil {
		fail("%s: %v", filename, runErr)
	}
}

// setupColor applies the configured color mode, falling back to plain output
// when stderr is not a terminal.
func setupColor(cfg *manifest.Manifest) {
	switch cfg.Output.Color {
	case manifest.ColorAlways:
		color.NoColor = false
	case manifest.ColorNever:
		color.NoColor = true
	default:
		if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			color.NoColor = true
		}
	}
}

func setupLogging(cfg *manifest.Manifest, debug bool) {
	verbosity := 0
	if cfg.Trace.Enabled {
		verbosity = cfg.Trace.Verbosity
	}
	if debug {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
}

func writeDump(prog *vm.Program, path string) error {
	r, err := report.Build(prog)
	if err != nil {
		return err
	}
	data, err := report.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func recordProfile(cfg *manifest.Manifest, filename string, interp *vm.Interp) error {
	store, err := profile.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.RecordRun(filepath.Base(filename), interp.OpcodeCounts())
	return err
}

func fail(format string, args ...any) {
	errorLine.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
