// ckb-debugger runs a script from a mock transaction inside a deterministic
// RISC-V VM and exposes it to debugging and profiling front ends.
package main

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/debug"
	"github.com/ckb-contrib/ckb-debugger/kernel"
	"github.com/ckb-contrib/ckb-debugger/loader"
	"github.com/ckb-contrib/ckb-debugger/models"
	"github.com/ckb-contrib/ckb-debugger/profile"
	"github.com/ckb-contrib/ckb-debugger/trace"
	"github.com/ckb-contrib/ckb-debugger/tx"
)

// process exit codes beyond the script's own
const (
	exitBadInput = 254
	exitVMError  = 253
	exitProtocol = 252
)

const defaultMaxCycles = 70_000_000

// dummy transaction used when no --tx-file is given and the program comes
// from --bin; its first input's lock script becomes the script under test
//
//go:embed dummy_tx.json
var dummyTx []byte

type options struct {
	txFile          string
	bin             string
	scriptGroupType string
	cellType        string
	cellIndex       int
	scriptHash      string
	scriptVersion   int
	maxCycles       uint64
	mode            string
	gdbListen       string
	pprofFile       string
	readFile        string
	traceFile       string
	step            int
	skipStart       uint64
	skipEnd         uint64
	verbose         bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := &options{}
	code := 0

	root := &cobra.Command{
		Use:           "ckb-debugger [flags] [-- args passed to the script]",
		Short:         "debugger and profiler for scripts in a deterministic RISC-V VM",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			code, err = runSession(opts, args)
			return err
		},
	}
	f := root.Flags()
	f.StringVarP(&opts.txFile, "tx-file", "f", "", "mock transaction JSON file")
	f.StringVar(&opts.bin, "bin", "", "replace the resolved script binary with a local ELF file")
	f.StringVarP(&opts.scriptGroupType, "script-group-type", "g", "lock", "script group to run: lock | type")
	f.StringVarP(&opts.cellType, "cell-type", "t", "input", "cell side the script sits on: input | output")
	f.IntVarP(&opts.cellIndex, "cell-index", "i", 0, "index of the cell carrying the script")
	f.StringVarP(&opts.scriptHash, "script-hash", "s", "", "select the script group by hash instead of by cell")
	f.IntVar(&opts.scriptVersion, "script-version", 2, "script VM version declared by the transaction")
	f.Uint64Var(&opts.maxCycles, "max-cycles", defaultMaxCycles, "cycle budget for the run")
	f.StringVar(&opts.mode, "mode", "full", "run mode: full | fast | gdb | repl")
	f.StringVarP(&opts.gdbListen, "gdb-listen", "l", "127.0.0.1:9999", "gdb stub listen address for --mode gdb")
	f.StringVarP(&opts.pprofFile, "pprof", "p", "", "write a folded-stack profile to this file")
	f.StringVar(&opts.readFile, "read-file", "", "file served to the script through the read_file syscall")
	f.StringVar(&opts.traceFile, "trace-file", "", "record the execution trace to this file")
	f.CountVar(&opts.step, "step", "print the PC per instruction; repeat to print registers too")
	f.Uint64Var(&opts.skipStart, "skip-start", 0, "suppress step output from this address")
	f.Uint64Var(&opts.skipEnd, "skip-end", 0, "suppress step output up to this address")
	f.BoolVar(&opts.verbose, "verbose", false, "debug-level logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code == 0 {
			code = exitBadInput
		}
	}
	return code
}

// runSession builds the machine and drives the selected mode. The int is the
// process exit code; a non-nil error is only returned alongside a non-zero
// code for conditions worth printing.
func runSession(opts *options, scriptArgs []string) (int, error) {
	logger := log15.New()
	lvl := log15.LvlInfo
	if opts.verbose {
		lvl = log15.LvlDebug
	}
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))

	if err := validateScriptVersion(opts.scriptVersion); err != nil {
		return exitBadInput, err
	}
	mtx, script, err := resolveScript(opts)
	if err != nil {
		return exitBadInput, err
	}
	program, err := loadProgramBytes(opts, mtx, script)
	if err != nil {
		return exitBadInput, err
	}

	k, err := kernel.New(mtx, script, logger)
	if err != nil {
		return exitBadInput, err
	}
	if opts.readFile != "" {
		data, err := os.ReadFile(opts.readFile)
		if err != nil {
			return exitBadInput, errors.Wrap(err, "reading --read-file")
		}
		k.SetReadFile(data)
	}

	machine := riscv.NewCPU(k)
	prog, err := loader.LoadProgram(machine, program, append([]string{"main"}, scriptArgs...))
	if err != nil {
		return exitBadInput, err
	}
	transferCycles := models.TransferredByteCycles(prog.Loaded)
	machine.AddCycles(transferCycles)

	cfg := &models.Config{
		MaxCycles:   opts.maxCycles,
		StepDebug:   opts.step,
		SkipStart:   opts.skipStart,
		SkipEnd:     opts.skipEnd,
		Color:       isatty.IsTerminal(os.Stdout.Fd()),
		PprofOutput: opts.pprofFile,
		TraceOutput: opts.traceFile,
		Verbose:     opts.verbose,
	}

	syms := models.NewSymbolTable(prog.Symbols)
	ctrl := debug.NewController(machine, debug.NewTable(), cfg.MaxCycles)
	if cfg.StepDebug > 0 {
		attachStepPrinter(ctrl, machine, syms, cfg)
	}
	if cfg.TraceOutput != "" {
		closeTrace, err := attachTracer(ctrl, machine, cfg.TraceOutput)
		if err != nil {
			return exitBadInput, err
		}
		defer func() {
			if err := closeTrace(); err != nil {
				logger.Error("trace output incomplete", "path", cfg.TraceOutput, "err", err)
			}
		}()
	}

	var prof *profile.Profiler
	if opts.mode == "full" {
		prof = profile.New(syms, machine.PC())
		prof.Attach(ctrl)
	}

	switch opts.mode {
	case "full", "fast":
		return runToCompletion(ctrl, prof, cfg, transferCycles, logger)
	case "gdb":
		stub := debug.NewGdbstub(ctrl, logger)
		if err := stub.Listen(opts.gdbListen); err != nil {
			return exitProtocol, err
		}
		return reportOutcome(ctrl, nil, cfg, transferCycles, logger)
	case "repl":
		repl := debug.NewRepl(ctrl, syms, cfg.Color)
		if err := repl.Run(); err != nil {
			return exitProtocol, err
		}
		return reportOutcome(ctrl, nil, cfg, transferCycles, logger)
	default:
		return exitBadInput, errors.Errorf("unknown mode %q", opts.mode)
	}
}

func resolveScript(opts *options) (*tx.MockTransaction, *tx.Script, error) {
	raw := dummyTx
	baseDir := "."
	if opts.txFile != "" {
		data, err := os.ReadFile(opts.txFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading --tx-file")
		}
		raw = data
		baseDir = filepath.Dir(opts.txFile)
	} else if opts.bin == "" {
		return nil, nil, errors.New("either --tx-file or --bin is required")
	}
	expanded, err := tx.ExpandTemplates(raw, baseDir)
	if err != nil {
		return nil, nil, err
	}
	mtx, err := tx.Parse(expanded)
	if err != nil {
		return nil, nil, err
	}

	group := tx.ScriptGroupType(opts.scriptGroupType)
	if group != tx.GroupLock && group != tx.GroupType {
		return nil, nil, errors.Errorf("unknown script group type %q", opts.scriptGroupType)
	}
	var script *tx.Script
	if opts.scriptHash != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(opts.scriptHash, "0x"))
		if err != nil || len(raw) != 32 {
			return nil, nil, errors.Errorf("bad script hash %q", opts.scriptHash)
		}
		var hash [32]byte
		copy(hash[:], raw)
		script, err = mtx.FindScript(group, hash)
		if err != nil {
			return nil, nil, err
		}
	} else {
		script, err = mtx.ScriptByCell(group, opts.cellType, opts.cellIndex)
		if err != nil {
			return nil, nil, err
		}
	}
	return mtx, script, nil
}

// validateScriptVersion rejects VM versions no real transaction declares.
// The bundled interpreter runs every accepted version the same way; the flag
// exists so transactions written for other tools keep working.
func validateScriptVersion(v int) error {
	if v < 0 || v > 2 {
		return errors.Errorf("unsupported script version %d, expected 0, 1 or 2", v)
	}
	return nil
}

func loadProgramBytes(opts *options, mtx *tx.MockTransaction, script *tx.Script) ([]byte, error) {
	if opts.bin != "" {
		data, err := os.ReadFile(opts.bin)
		if err != nil {
			return nil, errors.Wrap(err, "reading --bin")
		}
		return data, nil
	}
	return mtx.ExtractProgram(script)
}

func attachStepPrinter(ctrl *debug.Controller, machine *riscv.CPU, syms *models.SymbolTable, cfg *models.Config) {
	ctrl.OnStep(func(before, after uint64) {
		if cfg.SkipEnd > cfg.SkipStart && before >= cfg.SkipStart && before < cfg.SkipEnd {
			return
		}
		line := fmt.Sprintf("pc %#x <%s>", before, syms.Name(before))
		if cfg.Color {
			line = ansi.Color(line, "blue")
		}
		fmt.Println(line)
		if cfg.StepDebug > 1 {
			for i := 0; i < riscv.RegCount; i += 4 {
				for j := i; j < i+4; j++ {
					v, _ := machine.RegRead(j)
					fmt.Printf("%-4s%016x  ", riscv.RegNames[j], v)
				}
				fmt.Println()
			}
		}
	})
}

// attachTracer records every step to path. The returned close function
// flushes the file and surfaces the first write error hit by the step hook.
func attachTracer(ctrl *debug.Controller, machine *riscv.CPU, path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating trace file")
	}
	tw, err := trace.NewWriter(f, "riscv64")
	if err != nil {
		f.Close()
		return nil, err
	}
	var packErr error
	ctrl.OnStep(func(before, after uint64) {
		if packErr != nil {
			return
		}
		packErr = tw.Pack(&trace.Record{PC: before, Cycles: machine.Cycles()})
	})
	return func() error {
		closeErr := tw.Close()
		if err := f.Close(); closeErr == nil {
			closeErr = err
		}
		if packErr != nil {
			return errors.Wrap(packErr, "writing trace record")
		}
		return closeErr
	}, nil
}

func runToCompletion(ctrl *debug.Controller, prof *profile.Profiler, cfg *models.Config, transferCycles uint64, logger log15.Logger) (int, error) {
	reason, err := ctrl.Resume(debug.Continue)
	if err != nil {
		return exitVMError, err
	}
	switch reason.Kind {
	case models.StopCycleLimit:
		return exitVMError, errors.Errorf("cycle budget of %d exceeded", ctrl.MaxCycles())
	case models.StopFault:
		logger.Error("machine fault", "err", reason.Err, "pc", fmt.Sprintf("%#x", ctrl.Machine().PC()))
		if prof != nil {
			fmt.Fprintln(os.Stderr, prof.Stacktrace(ctrl.Machine().PC()))
		}
		return exitVMError, reason.Err
	}
	return reportOutcome(ctrl, prof, cfg, transferCycles, logger)
}

// reportOutcome prints the final cycle accounting and maps the machine state
// to a process exit code. Used by every mode once its session ends.
func reportOutcome(ctrl *debug.Controller, prof *profile.Profiler, cfg *models.Config, transferCycles uint64, logger log15.Logger) (int, error) {
	m := ctrl.Machine()
	total := m.Cycles()
	fmt.Printf("total cycles consumed: %s\n", models.HumanCycles(total))
	fmt.Printf("transferred byte cycles: %d, running cycles: %d\n", transferCycles, total-transferCycles)

	if prof != nil && cfg.PprofOutput != "" {
		f, err := os.Create(cfg.PprofOutput)
		if err != nil {
			return exitBadInput, errors.Wrap(err, "creating pprof file")
		}
		defer f.Close()
		if err := prof.WriteFolded(f); err != nil {
			return exitBadInput, err
		}
		logger.Info("profile written", "path", cfg.PprofOutput, "cycles", prof.Total())
	}

	switch ctrl.Status() {
	case debug.Exited:
		code := ctrl.LastStop().ExitCode
		fmt.Printf("run result: %d\n", code)
		return int(uint8(code)), nil
	case debug.Faulted:
		return exitVMError, ctrl.LastStop().Err
	default:
		// session front end ended before the program did
		return 0, nil
	}
}
