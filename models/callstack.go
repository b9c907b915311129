package models

// Frame is one entry of the profiler's guessed call stack: where the callee
// was entered, where execution should resume after it returns, and the cycle
// counter at entry.
type Frame struct {
	Entry   uint64
	Ret     uint64
	Cycles  uint64
	Symbol  string
}

// Callstack is an explicit frame stack built from heuristic call/return
// detection. Pop on an empty stack is a no-op since return detection can
// misfire on hand-written control transfers.
type Callstack struct {
	stack []Frame
}

func (s *Callstack) Len() int {
	return len(s.stack)
}

func (s *Callstack) Empty() bool {
	return len(s.stack) == 0
}

func (s *Callstack) Push(f Frame) {
	s.stack = append(s.stack, f)
}

func (s *Callstack) Peek() Frame {
	if s.Empty() {
		return Frame{}
	}
	return s.stack[len(s.stack)-1]
}

func (s *Callstack) Pop() Frame {
	if s.Empty() {
		return Frame{}
	}
	ret := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return ret
}

// Frames returns the stack bottom-up. The backing array is shared.
func (s *Callstack) Frames() []Frame {
	return s.stack
}

// ReturnDepth reports how many frames must be popped so that the top frame's
// return address equals pc, or -1 when pc matches no recorded return site.
func (s *Callstack) ReturnDepth(pc uint64) int {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].Ret == pc {
			return len(s.stack) - i
		}
	}
	return -1
}
