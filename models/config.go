package models

// Config carries the process-wide knobs set once at startup by the CLI and
// passed by pointer into every session. Nothing reads ambient global state.
type Config struct {
	// MaxCycles is the initial cycle budget for a session. The execution
	// controller may raise it later; 0 means the CLI default.
	MaxCycles uint64

	// StepDebug prints the PC before each instruction when > 0, and the full
	// register file as well when > 1.
	StepDebug int

	// SkipStart/SkipEnd suppress StepDebug printing while the PC lies inside
	// [SkipStart, SkipEnd).
	SkipStart uint64
	SkipEnd   uint64

	// Color enables ANSI-colored step output.
	Color bool

	// PprofOutput is the path for the folded-stack profile, if any.
	PprofOutput string

	// TraceOutput is the path for the binary execution trace, if any.
	TraceOutput string

	Verbose bool
}
