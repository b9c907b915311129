package profile

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"

	"github.com/ckb-contrib/ckb-debugger/debug"
	"github.com/ckb-contrib/ckb-debugger/models"
)

// Profiler observes every executed instruction and attributes the cycle
// delta to a call tree. Calls and returns are guessed from control flow
// alone: a jump to a known symbol entry opens a frame, a jump back to a
// recorded return address closes frames. Tail calls and hand-written
// control transfers can misattribute cycles, which is acceptable for a
// sampling-free heuristic; the total is always conserved.
type Profiler struct {
	syms  *models.SymbolTable
	stack models.Callstack
	root  *Node
	nodes []*Node
	last  uint64
	total uint64
}

// New builds a profiler rooted at the symbol covering entryPC.
func New(syms *models.SymbolTable, entryPC uint64) *Profiler {
	return &Profiler{
		syms: syms,
		root: newNode(syms.Name(entryPC)),
	}
}

// Attach hooks the profiler into the controller's step loop.
func (p *Profiler) Attach(c *debug.Controller) {
	m := c.Machine()
	p.last = m.Cycles()
	c.OnStep(func(before, after uint64) {
		p.Record(before, after, m.Cycles())
	})
}

func (p *Profiler) current() *Node {
	if len(p.nodes) == 0 {
		return p.root
	}
	return p.nodes[len(p.nodes)-1]
}

// Record accounts one executed instruction. cycles is the machine's counter
// after the instruction; the delta since the previous call is attributed to
// the frame the instruction ran in.
func (p *Profiler) Record(before, after, cycles uint64) {
	delta := cycles - p.last
	p.last = cycles
	p.current().Self += delta
	p.total += delta

	// sequential flow never opens or closes frames
	if after == before+4 {
		return
	}
	if depth := p.stack.ReturnDepth(after); depth > 0 {
		for i := 0; i < depth; i++ {
			p.stack.Pop()
			if len(p.nodes) > 0 {
				p.nodes = p.nodes[:len(p.nodes)-1]
			}
		}
		return
	}
	if p.syms.Entry(after) {
		name := p.syms.Name(after)
		p.stack.Push(models.Frame{
			Entry:  after,
			Ret:    before + 4,
			Cycles: cycles,
			Symbol: name,
		})
		p.nodes = append(p.nodes, p.current().Child(name))
	}
}

// Root exposes the call tree for rendering.
func (p *Profiler) Root() *Node {
	return p.root
}

// Total is the cycle sum attributed so far. It always equals the root's
// cumulative count.
func (p *Profiler) Total() uint64 {
	return p.total
}

// WriteFolded emits the whole tree as folded stacks.
func (p *Profiler) WriteFolded(w io.Writer) error {
	return p.root.WriteFolded(w)
}

// Stacktrace renders the current guessed call stack, innermost frame last.
func (p *Profiler) Stacktrace(pc uint64) string {
	tree := treeprint.New()
	tree.SetValue(p.root.Name)
	branch := tree
	for _, f := range p.stack.Frames() {
		// f.Cycles is the machine counter at frame entry, so the difference
		// against the last recorded counter is the cost of the frame so far
		branch = branch.AddBranch(fmt.Sprintf("%s @ %#x (+%d cycles)", f.Symbol, f.Entry, p.last-f.Cycles))
	}
	branch.AddNode(fmt.Sprintf("pc %#x <%s>", pc, p.syms.Name(pc)))
	return tree.String()
}
