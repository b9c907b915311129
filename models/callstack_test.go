package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallstackPushPop(t *testing.T) {
	var s Callstack
	require.True(t, s.Empty())
	s.Push(Frame{Entry: 0x1000, Ret: 0x2004})
	s.Push(Frame{Entry: 0x1100, Ret: 0x1020})
	require.Equal(t, 2, s.Len())
	require.Equal(t, uint64(0x1100), s.Peek().Entry)
	require.Equal(t, uint64(0x1100), s.Pop().Entry)
	require.Equal(t, uint64(0x1000), s.Pop().Entry)
	// popping empty is a no-op returning a zero frame
	require.Equal(t, Frame{}, s.Pop())
}

func TestCallstackReturnDepth(t *testing.T) {
	var s Callstack
	s.Push(Frame{Entry: 0x1000, Ret: 0x5000})
	s.Push(Frame{Entry: 0x1100, Ret: 0x1020})
	s.Push(Frame{Entry: 0x1200, Ret: 0x1120})

	require.Equal(t, 1, s.ReturnDepth(0x1120))
	// returning past a missed pop unwinds multiple frames
	require.Equal(t, 3, s.ReturnDepth(0x5000))
	require.Equal(t, -1, s.ReturnDepth(0x9999))
}

func TestHumanCycles(t *testing.T) {
	require.Equal(t, "999", HumanCycles(999).String())
	require.Equal(t, "1500(1.5K)", HumanCycles(1500).String())
	require.Equal(t, "3400000(3.4M)", HumanCycles(3_400_000).String())
}

func TestTransferredByteCycles(t *testing.T) {
	require.Equal(t, uint64(0), TransferredByteCycles(0))
	require.Equal(t, uint64(1), TransferredByteCycles(1))
	require.Equal(t, uint64(1), TransferredByteCycles(10))
	require.Equal(t, uint64(2), TransferredByteCycles(11))
}
