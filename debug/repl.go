package debug

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/arch/riscv"
	"github.com/ckb-contrib/ckb-debugger/models"
)

// Repl is a line-oriented interactive debugger session on a terminal.
type Repl struct {
	ctrl  *Controller
	syms  *models.SymbolTable
	color bool
}

func NewRepl(ctrl *Controller, syms *models.SymbolTable, color bool) *Repl {
	return &Repl{ctrl: ctrl, syms: syms, color: color}
}

func (r *Repl) colorize(color, s string) string {
	if !r.color {
		return s
	}
	return ansi.Color(s, color)
}

func (r *Repl) location(pc uint64) string {
	if r.syms == nil {
		return fmt.Sprintf("%#x", pc)
	}
	return fmt.Sprintf("%#x <%s>", pc, r.syms.Name(pc))
}

// Run reads commands until quit, EOF, or the session ends.
func (r *Repl) Run() error {
	rl, err := readline.New(r.colorize("cyan", "(ckb-dbg) "))
	if err != nil {
		return errors.Wrap(err, "readline init failed")
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintf(out, "stopped at %s, type \"help\" for commands\n", r.location(r.ctrl.Machine().PC()))
	for {
		line, err := rl.Readline()
		if err != nil {
			// ^C clears the line, ^D/EOF ends the session
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "readline failed")
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		done, err := r.dispatch(out, fields[0], fields[1:])
		if err != nil {
			fmt.Fprintln(out, r.colorize("red", err.Error()))
		}
		if done {
			return nil
		}
	}
}

func (r *Repl) dispatch(out io.Writer, cmd string, args []string) (bool, error) {
	switch cmd {
	case "help", "h":
		r.help(out)
	case "continue", "c":
		return r.resume(out, Continue)
	case "step", "s":
		n := uint64(1)
		if len(args) > 0 {
			v, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil || v == 0 {
				return false, errors.New("step count must be a positive integer")
			}
			n = v
		}
		return r.resume(out, StepN(n))
	case "break", "b":
		addr, err := parseAddr(args, 0)
		if err != nil {
			return false, err
		}
		r.ctrl.Table().SetBreakpoint(addr)
		fmt.Fprintf(out, "breakpoint set at %s\n", r.location(addr))
	case "delete", "d":
		addr, err := parseAddr(args, 0)
		if err != nil {
			return false, err
		}
		r.ctrl.Table().ClearBreakpoint(addr)
	case "enable", "disable":
		addr, err := parseAddr(args, 0)
		if err != nil {
			return false, err
		}
		r.ctrl.Table().EnableBreakpoint(addr, cmd == "enable")
		fmt.Fprintf(out, "breakpoint %sd at %s\n", cmd, r.location(addr))
	case "watch", "rwatch", "awatch":
		addr, err := parseAddr(args, 0)
		if err != nil {
			return false, err
		}
		size := uint64(8)
		if len(args) > 1 {
			if size, err = strconv.ParseUint(args[1], 0, 64); err != nil || size == 0 {
				return false, errors.New("watch size must be a positive integer")
			}
		}
		kind := WatchWrite
		switch cmd {
		case "rwatch":
			kind = WatchRead
		case "awatch":
			kind = WatchAccess
		}
		r.ctrl.Table().SetWatchpoint(addr, size, kind)
		fmt.Fprintf(out, "%s watchpoint set on [%#x, %#x)\n", kind, addr, addr+size)
	case "info", "i":
		r.info(out, args)
	case "regs", "r":
		r.printRegs(out)
	case "x", "mem":
		addr, err := parseAddr(args, 0)
		if err != nil {
			return false, err
		}
		size := uint64(64)
		if len(args) > 1 {
			if size, err = strconv.ParseUint(args[1], 0, 64); err != nil {
				return false, errors.New("bad size")
			}
		}
		mem, err := r.ctrl.Machine().MemRead(addr, size)
		if err != nil {
			return false, err
		}
		dumpHex(out, addr, mem)
	case "cycles":
		fmt.Fprintf(out, "%d cycles consumed, budget %d\n", r.ctrl.Machine().Cycles(), r.ctrl.MaxCycles())
	case "quit", "q", "exit":
		return true, nil
	default:
		return false, errors.Errorf("unknown command %q, type \"help\"", cmd)
	}
	return false, nil
}

func (r *Repl) resume(out io.Writer, mode RunMode) (bool, error) {
	reason, err := r.ctrl.Resume(mode)
	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			fmt.Fprintln(out, r.ctrl.LastStop().String())
			return true, nil
		}
		return false, err
	}
	switch reason.Kind {
	case models.StopExited, models.StopFault:
		fmt.Fprintln(out, r.colorize("yellow", reason.String()))
		return true, nil
	case models.StopCycleLimit:
		fmt.Fprintln(out, r.colorize("yellow", reason.String()))
	default:
		fmt.Fprintf(out, "%s at %s\n", reason.String(), r.location(r.ctrl.Machine().PC()))
	}
	return false, nil
}

func (r *Repl) info(out io.Writer, args []string) {
	what := "break"
	if len(args) > 0 {
		what = args[0]
	}
	switch what {
	case "break", "b":
		bps := r.ctrl.Table().Breakpoints()
		if len(bps) == 0 {
			fmt.Fprintln(out, "no breakpoints")
		}
		for _, addr := range bps {
			fmt.Fprintf(out, "breakpoint %s\n", r.location(addr))
		}
		for _, w := range r.ctrl.Table().Watchpoints() {
			fmt.Fprintf(out, "%s watchpoint [%#x, %#x)\n", w.Kind, w.Addr, w.Addr+w.Size)
		}
	case "status":
		fmt.Fprintf(out, "%s, last stop: %s\n", r.ctrl.Status(), r.ctrl.LastStop().String())
	default:
		fmt.Fprintf(out, "unknown info topic %q\n", what)
	}
}

func (r *Repl) printRegs(out io.Writer) {
	m := r.ctrl.Machine()
	fmt.Fprintf(out, "pc  %016x  %s\n", m.PC(), r.location(m.PC()))
	for i := 0; i < riscv.RegCount; i += 2 {
		a, _ := m.RegRead(i)
		b, _ := m.RegRead(i + 1)
		fmt.Fprintf(out, "%-4s%016x  %-4s%016x\n", riscv.RegNames[i], a, riscv.RegNames[i+1], b)
	}
}

func (r *Repl) help(out io.Writer) {
	fmt.Fprint(out, `commands:
  c, continue          run until a stop condition
  s, step [n]          execute n instructions (default 1)
  b, break ADDR        set a breakpoint
  d, delete ADDR       remove a breakpoint
  disable ADDR         keep a breakpoint but stop it from triggering
  enable ADDR          re-arm a disabled breakpoint
  watch ADDR [SIZE]    stop on writes to [ADDR, ADDR+SIZE)
  rwatch ADDR [SIZE]   stop on reads
  awatch ADDR [SIZE]   stop on any access
  i, info [break]      list breakpoints and watchpoints
  r, regs              dump registers
  x ADDR [SIZE]        dump memory
  cycles               show consumed cycles and the budget
  q, quit              leave the session
`)
}

func parseAddr(args []string, i int) (uint64, error) {
	if len(args) <= i {
		return 0, errors.New("address required")
	}
	s := strings.TrimPrefix(args[i], "0x")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Errorf("bad address %q", args[i])
	}
	return addr, nil
}

func dumpHex(w io.Writer, addr uint64, p []byte) {
	for off := 0; off < len(p); off += 16 {
		end := off + 16
		if end > len(p) {
			end = len(p)
		}
		fmt.Fprintf(w, "%08x  %s\n", addr+uint64(off), hex.EncodeToString(p[off:end]))
	}
}
