package debug

import (
	"github.com/pkg/errors"

	"github.com/ckb-contrib/ckb-debugger/models"
)

// ErrSessionEnded is returned by Resume after the machine has exited or
// faulted. Inspection of the final state remains possible.
var ErrSessionEnded = errors.New("session ended")

// Status is the controller's lifecycle state.
type Status int

const (
	Idle Status = iota
	Running
	Stopped
	Exited
	Faulted
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Exited:
		return "exited"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// RunMode selects how far a Resume call may run. A zero Steps means run
// until a stop condition occurs.
type RunMode struct {
	Steps uint64
}

var Continue = RunMode{}

func StepN(n uint64) RunMode {
	return RunMode{Steps: n}
}

// StepFunc observes each executed instruction. before is the PC the
// instruction was fetched from, after the PC it left behind.
type StepFunc func(before, after uint64)

// Controller owns the run loop of a machine. It enforces the cycle budget,
// consults the breakpoint table after every instruction, and exposes the
// stopped machine for register and memory inspection.
type Controller struct {
	machine models.Machine
	table   *Table

	status    Status
	last      models.StopReason
	maxCycles uint64
	hooks     []StepFunc
}

func NewController(m models.Machine, table *Table, maxCycles uint64) *Controller {
	if table == nil {
		table = NewTable()
	}
	return &Controller{machine: m, table: table, maxCycles: maxCycles}
}

func (c *Controller) Machine() models.Machine {
	return c.machine
}

func (c *Controller) Table() *Table {
	return c.table
}

func (c *Controller) Status() Status {
	return c.status
}

// LastStop returns the reason of the most recent stop. Zero value while Idle.
func (c *Controller) LastStop() models.StopReason {
	return c.last
}

func (c *Controller) MaxCycles() uint64 {
	return c.maxCycles
}

// SetMaxCycles adjusts the budget. Raising it after a StopCycleLimit makes
// the session resumable again.
func (c *Controller) SetMaxCycles(n uint64) {
	c.maxCycles = n
}

// OnStep registers a hook invoked after every executed instruction, before
// stop conditions are evaluated. Hooks run in registration order.
func (c *Controller) OnStep(fn StepFunc) {
	c.hooks = append(c.hooks, fn)
}

// Inspect snapshots the machine without disturbing the session. After a
// fault the snapshot carries the fault error.
func (c *Controller) Inspect() models.ExecutionState {
	state := models.Snapshot(c.machine)
	if c.status == Faulted {
		state.Fault = c.last.Err
	}
	return state
}

// SingleStep executes exactly one instruction.
func (c *Controller) SingleStep() (models.StopReason, error) {
	return c.Resume(StepN(1))
}

// Resume runs the machine until a stop condition occurs and returns the
// reason. Faults and exits are reported as StopReasons, not errors; after
// either, further Resume calls return ErrSessionEnded.
//
// Per instruction the conditions are evaluated in order: fault, exit,
// breakpoint/watchpoint, cycle budget, step count. A breakpoint at the
// starting PC does not re-trigger: at least one instruction executes.
func (c *Controller) Resume(mode RunMode) (models.StopReason, error) {
	switch c.status {
	case Exited, Faulted:
		return models.StopReason{}, ErrSessionEnded
	case Stopped:
		if c.last.Kind == models.StopCycleLimit && c.machine.Cycles() >= c.maxCycles {
			return models.StopReason{}, errors.New("cycle budget exhausted, raise it before resuming")
		}
	}
	c.status = Running

	var steps uint64
	for {
		before := c.machine.PC()
		err := c.machine.Step()
		after := c.machine.PC()
		for _, fn := range c.hooks {
			fn(before, after)
		}

		if err != nil {
			c.status = Faulted
			c.last = models.StopReason{Kind: models.StopFault, Addr: before, Err: err}
			return c.last, nil
		}
		if exited, code := c.machine.Exited(); exited {
			c.status = Exited
			c.last = models.StopReason{Kind: models.StopExited, ExitCode: code}
			return c.last, nil
		}
		if reason := c.table.Check(after, c.machine.Accesses()); reason != nil {
			c.status = Stopped
			c.last = *reason
			return c.last, nil
		}
		if c.machine.Cycles() > c.maxCycles {
			c.status = Stopped
			c.last = models.StopReason{Kind: models.StopCycleLimit}
			return c.last, nil
		}
		steps++
		if mode.Steps > 0 && steps >= mode.Steps {
			c.status = Stopped
			c.last = models.StopReason{Kind: models.StopStepDone, Addr: after}
			return c.last, nil
		}
	}
}
