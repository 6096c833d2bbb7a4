package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lowlangc/lowlangc/internal/backend"
	"github.com/lowlangc/lowlangc/internal/backend/textasm"
	"github.com/lowlangc/lowlangc/internal/compileerr"
	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/middle"
	"github.com/lowlangc/lowlangc/internal/target"
)

var version = "0.1.0"

// Debug flags for dumping intermediate state, mirroring ralph-cc's
// -dparse/-drtl/... family but over this pipeline's own two stages
// (typed IR in, relocatable assembly text out - there is no front-end
// parse stage here).
var (
	dumpIR   bool
	dumpRTTI bool
	emitAsm  bool
	targetFile string
	outFile    string
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lowlangc: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lowlangc",
		Short: "lowlangc lowers a typed generic IR module to relocatable assembly",
		Long: `lowlangc drives the lowering engine and a reference textual
assembly backend over a fixed demonstration module, the way a real
front end would drive it over a parsed program. There is no source
language in this pipeline's scope: its input is already-typed IR.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "Dump the input IR module before lowering")
	rootCmd.Flags().BoolVar(&dumpRTTI, "dump-rtti", false, "Dump allocated VWT/type-info data symbols")
	rootCmd.Flags().BoolVar(&emitAsm, "emit-asm", true, "Emit relocatable assembly text")
	rootCmd.Flags().StringVar(&targetFile, "target", "", "Target configuration YAML file (default: built-in 64-bit little-endian)")
	rootCmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file for emitted assembly (default: stdout)")

	return rootCmd
}

// runPipeline drives the lowering engine and recovers any
// *compileerr.CompileError panicked by the builder, the engine, or the
// type layout code, translating it into a returned error the way a
// single recover() boundary around ErrNotImplemented-style sentinels
// would in the original CLI's driver. An invariant violation this deep
// in the pipeline is reported and ends the process non-zero; it never
// reaches the caller as a raw Go stack trace.
func runPipeline(out, errOut io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*compileerr.CompileError); ok {
				err = ce
			} else {
				err = compileerr.New(compileerr.IRMalformed, fmt.Sprintf("internal error: %v", r))
			}
			fmt.Fprintf(errOut, "lowlangc: %v\n", err)
		}
	}()

	cfg, err := loadTarget()
	if err != nil {
		fmt.Fprintf(errOut, "lowlangc: %v\n", err)
		return err
	}

	m := buildDemoModule()
	if dumpIR {
		dumpModule(out, m)
	}

	be := textasm.New(cfg.PointerSize, cfg.Endian())
	eng := middle.New(be)
	eng.LowerModule(m)

	if dumpRTTI {
		dumpData(out, be.Program())
	}

	if emitAsm {
		w := out
		if outFile != "" {
			f, ferr := os.Create(outFile)
			if ferr != nil {
				err = compileerr.Wrap(compileerr.IOFailure, fmt.Sprintf("creating %s", outFile), ferr)
				fmt.Fprintf(errOut, "lowlangc: %v\n", err)
				return err
			}
			defer f.Close()
			w = f
		}
		textasm.NewPrinter(w).Print(be.Program())
	}

	return nil
}

// loadTarget resolves the target configuration: the built-in default,
// or a YAML file named by --target.
func loadTarget() (target.Config, error) {
	if targetFile == "" {
		return target.Default(), nil
	}
	cfg, err := target.Load(targetFile)
	if err != nil {
		return target.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return target.Config{}, err
	}
	return cfg, nil
}

// dumpModule prints a minimal per-function summary of m: name, arity,
// block count. A full structural IR printer is out of this driver's
// scope (no module in this pipeline exists purely to pretty-print
// internal/ir, unlike the textasm package's dedicated Printer);
// this is a debugging aid, not a re-parseable serialization.
func dumpModule(out io.Writer, m *ir.Module) {
	fmt.Fprintf(out, "; module %s\n", m.Name)
	for id := range m.Funcs {
		fn := &m.Funcs[id]
		fmt.Fprintf(out, "; func %s (linkage=%d)", fn.Name, fn.Linkage)
		if fn.Body != nil {
			body := m.Body(*fn.Body)
			fmt.Fprintf(out, " generics=%d blocks=%d", len(body.GenericParams), len(body.Blocks))
		}
		fmt.Fprintln(out)
	}
}

func dumpData(out io.Writer, prog *textasm.Program) {
	fmt.Fprintf(out, "; %d data symbols\n", len(prog.Data))
	for _, d := range prog.Data {
		fmt.Fprintf(out, ";   %s (%d bytes, %d relocs)\n", d.Name, len(d.Bytes), len(d.Relocs))
	}
}

var _ backend.Backend // referenced only to keep the import honest if dumpData's signature changes
