package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MemObserver is notified after each successful memory access performed with
// protection checks. It is how watchpoints and tracing see the data stream
// without the memory model knowing about either.
type MemObserver interface {
	OnMem(access int, addr uint64, size int, value uint64)
}

// Mem wraps MemSim to expose a bounds-checked, observed memory model.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask,
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask     uint64
	observer MemObserver
	// MemSim is private, so any machine-facing functionality is wrapped here
	sim *MemSim

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

func (m *Mem) SetObserver(o MemObserver) {
	m.observer = o
}

func (m *Mem) ByteOrder() binary.ByteOrder {
	return m.order
}

func (m *Mem) Pages() Pages {
	return m.sim.Mem
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	if (addr+size)&m.mask != addr+size {
		return errors.New("region outside memory range")
	}
	m.sim.Map(addr, size, prot, false)
	return nil
}

// Freeze drops the write bit on a mapped range. Frozen pages reject stores
// with MEM_WRITE_PROT, which callers surface as a read-only region error.
func (m *Mem) Freeze(addr, size uint64) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	first := m.sim.Mem.bsearch(addr)
	end := addr + size
	for _, pg := range m.sim.Mem[first:] {
		if pg.Addr >= end {
			break
		}
		if _, _, ok := pg.Intersect(addr, size); ok {
			pg.Prot &^= PROT_WRITE
		}
	}
	return nil
}

// MemReadInto and MemRead perform unchecked (debugger-level) reads: any
// mapped byte is readable regardless of protections, and no observer fires.
func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

// MemWrite is the debugger-level store: it respects the address map but not
// page protections, so a session can patch frozen program text.
func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// ReadProt reads while checking protections. This exists to support the
// machine interpreter's loads and instruction fetches.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, err
	}
	if m.observer != nil {
		if prot&PROT_EXEC == PROT_EXEC {
			m.observer.OnMem(MEM_FETCH, addr, int(size), 0)
		} else {
			m.observer.OnMem(MEM_READ, addr, int(size), 0)
		}
	}
	return p, nil
}

// WriteProt writes while checking protections, for the interpreter's stores.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	if err := m.sim.Write(addr, p, prot); err != nil {
		return err
	}
	if m.observer != nil {
		m.observer.OnMem(MEM_WRITE, addr, len(p), 0)
	}
	return nil
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("MemReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

// the write observer sees the packed value here, as WriteProt cannot fill it in
func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("MemWriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	if err := m.sim.Write(addr, buf[:size], prot); err != nil {
		return err
	}
	if m.observer != nil {
		m.observer.OnMem(MEM_WRITE, addr, size, val)
	}
	return nil
}
