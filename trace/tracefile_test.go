package trace

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "riscv64")
	require.NoError(t, err)

	records := []Record{
		{PC: 0x10000, Cycles: 1},
		{PC: 0x10004, Cycles: 4},
		{PC: 0x20000, Cycles: 504},
	}
	for i := range records {
		require.NoError(t, w.Pack(&records[i]))
	}
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	require.Equal(t, Magic, r.Header.Magic)
	require.Equal(t, uint32(1), r.Header.Version)
	require.Equal(t, "riscv64", r.Header.Arch)

	for i := range records {
		rec, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, records[i], *rec)
	}
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestTraceHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "riscv64")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
}

func TestTraceRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "riscv64")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw := buf.Bytes()
	raw[0] = 'X'
	_, err = NewReader(bytes.NewReader(raw))
	require.Error(t, err)
}
