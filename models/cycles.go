package models

import "fmt"

// HumanCycles formats a cycle count the way operators expect in reports:
// raw below a thousand, then K/M suffixes with one decimal.
type HumanCycles uint64

func (c HumanCycles) String() string {
	n := uint64(c)
	switch {
	case n >= 1000*1000:
		return fmt.Sprintf("%d(%.1fM)", n, float64(n)/(1000*1000))
	case n >= 1000:
		return fmt.Sprintf("%d(%.1fK)", n, float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// TransferredByteCycles is the cost charged for moving program bytes into the
// machine before execution: one cycle per ten bytes, rounded up.
func TransferredByteCycles(n uint64) uint64 {
	return (n + 9) / 10
}
