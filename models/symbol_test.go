package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testSymbols() *SymbolTable {
	return NewSymbolTable([]Symbol{
		{Name: "main", Start: 0x1000, End: 0x1100},
		{Name: "helper", Start: 0x1100, End: 0x1180},
		{Name: "tail", Start: 0x2000, End: 0x2040},
	})
}

func TestSymbolFind(t *testing.T) {
	syms := testSymbols()
	require.Equal(t, "main", syms.Name(0x1000))
	require.Equal(t, "main", syms.Name(0x10ff))
	require.Equal(t, "helper", syms.Name(0x1100))
	require.Nil(t, syms.Find(0x1180))
	require.Nil(t, syms.Find(0x0))
}

func TestSymbolNameFallback(t *testing.T) {
	syms := testSymbols()
	require.Equal(t, "0x1f00", syms.Name(0x1f00))
}

func TestSymbolEntry(t *testing.T) {
	syms := testSymbols()
	require.True(t, syms.Entry(0x1100))
	require.False(t, syms.Entry(0x1104))
	require.False(t, syms.Entry(0x3000))
}

func TestSymbolSortStability(t *testing.T) {
	a := NewSymbolTable([]Symbol{
		{Name: "b", Start: 0x10, End: 0x20},
		{Name: "a", Start: 0x10, End: 0x20},
	})
	b := NewSymbolTable([]Symbol{
		{Name: "a", Start: 0x10, End: 0x20},
		{Name: "b", Start: 0x10, End: 0x20},
	})
	require.Equal(t, a.Name(0x10), b.Name(0x10))
}
