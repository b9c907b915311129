package cpu

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMemReadWrite(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	if err := m.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE); err != nil {
		t.Fatal(err)
	}
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := m.MemWrite(0x1000, data); err != nil {
		t.Fatal(err)
	}
	out, err := m.MemRead(0x1000, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, out) {
		t.Fatalf("read back %v != %v", out, data)
	}
}

func TestMemUnmapped(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	_, err := m.MemRead(0x1000, 8)
	memErr, ok := err.(*MemError)
	if !ok {
		t.Fatalf("expected MemError, got %v", err)
	}
	if !memErr.Unmapped() {
		t.Fatal("expected an unmapped error")
	}
}

func TestMemHole(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	m.MemMapProt(0x1000, 0x1000, PROT_ALL)
	m.MemMapProt(0x3000, 0x1000, PROT_ALL)
	if _, err := m.MemRead(0x1800, 0x2000); err == nil {
		t.Fatal("read across a hole should fail")
	}
}

func TestMemFreeze(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	m.MemMapProt(0x1000, 0x1000, PROT_READ|PROT_WRITE|PROT_EXEC)
	if err := m.WriteProt(0x1000, []byte{1}, PROT_WRITE); err != nil {
		t.Fatal(err)
	}
	if err := m.Freeze(0x1000, 0x1000); err != nil {
		t.Fatal(err)
	}
	err := m.WriteProt(0x1000, []byte{2}, PROT_WRITE)
	memErr, ok := err.(*MemError)
	if !ok || !memErr.Protected() {
		t.Fatalf("expected a protected write error, got %v", err)
	}
	// the debugger-level store bypasses protections
	if err := m.MemWrite(0x1000, []byte{3}); err != nil {
		t.Fatal(err)
	}
	out, _ := m.MemRead(0x1000, 1)
	if out[0] != 3 {
		t.Fatalf("patch did not land: %v", out)
	}
}

func TestMemMapPreservesData(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	m.MemMapProt(0x1000, 0x1000, PROT_ALL)
	m.MemWrite(0x1800, []byte{0xaa})
	// remapping a superset keeps existing bytes
	m.MemMapProt(0x1000, 0x2000, PROT_ALL)
	out, err := m.MemRead(0x1800, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 0xaa {
		t.Fatalf("remap lost data: %v", out)
	}
}

func TestMemOutsideMask(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	if err := m.MemMapProt(0xffffffff, 0x1000, PROT_ALL); err == nil {
		t.Fatal("map past the address mask should fail")
	}
}

func TestMemObserver(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	m.MemMapProt(0x1000, 0x1000, PROT_ALL)
	var log AccessLog
	m.SetObserver(&log)

	if err := m.WriteUint(0x1010, 4, PROT_WRITE, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadUint(0x1010, 4, PROT_READ); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadUint(0x1000, 4, PROT_EXEC); err != nil {
		t.Fatal(err)
	}
	events := log.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != MEM_WRITE || events[0].Addr != 0x1010 || events[0].Value != 0xdeadbeef {
		t.Fatalf("bad write event: %+v", events[0])
	}
	if events[1].Kind != MEM_READ {
		t.Fatalf("bad read event: %+v", events[1])
	}
	if events[2].Kind != MEM_FETCH {
		t.Fatalf("bad fetch event: %+v", events[2])
	}

	// debugger-level access must stay invisible
	log.Reset()
	m.MemWrite(0x1010, []byte{1})
	m.MemRead(0x1010, 1)
	if len(log.Events()) != 0 {
		t.Fatal("unchecked access should not be observed")
	}
}

func TestReadUintByteOrder(t *testing.T) {
	m := NewMem(32, binary.LittleEndian)
	m.MemMapProt(0x1000, 0x1000, PROT_ALL)
	m.MemWrite(0x1000, []byte{0x78, 0x56, 0x34, 0x12})
	val, err := m.ReadUint(0x1000, 4, PROT_READ)
	if err != nil {
		t.Fatal(err)
	}
	if val != 0x12345678 {
		t.Fatalf("got %#x", val)
	}
}
