package models

import (
	"fmt"
	"sort"
)

type Symbol struct {
	Name       string
	Start, End uint64
}

func (s Symbol) Contains(addr uint64) bool {
	return s.Start <= addr && addr < s.End
}

// SymbolTable maps addresses to the function symbols covering them. The
// profiler keys its call graph on these names, so lookups must be stable for
// identical inputs.
type SymbolTable struct {
	syms []Symbol
}

func NewSymbolTable(syms []Symbol) *SymbolTable {
	sorted := make([]Symbol, len(syms))
	copy(sorted, syms)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Name < sorted[j].Name
	})
	return &SymbolTable{syms: sorted}
}

func (t *SymbolTable) Len() int {
	return len(t.syms)
}

// Find returns the symbol covering addr, or nil.
func (t *SymbolTable) Find(addr uint64) *Symbol {
	i := sort.Search(len(t.syms), func(i int) bool {
		return t.syms[i].Start > addr
	})
	if i--; i >= 0 && t.syms[i].Contains(addr) {
		return &t.syms[i]
	}
	return nil
}

// Name returns the symbol name covering addr, or a stable hex key.
func (t *SymbolTable) Name(addr uint64) string {
	if s := t.Find(addr); s != nil {
		return s.Name
	}
	return fmt.Sprintf("0x%x", addr)
}

// Entry reports whether addr is the first address of a known symbol.
func (t *SymbolTable) Entry(addr uint64) bool {
	s := t.Find(addr)
	return s != nil && s.Start == addr
}
