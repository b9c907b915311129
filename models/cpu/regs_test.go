package cpu

import "testing"

func TestRegsReadWrite(t *testing.T) {
	r := NewRegs(64, 32)
	if r.Count() != 32 {
		t.Fatalf("count %d", r.Count())
	}
	if err := r.RegWrite(5, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	val, err := r.RegRead(5)
	if err != nil {
		t.Fatal(err)
	}
	if val != 0xdeadbeef {
		t.Fatalf("got %#x", val)
	}
	if _, err := r.RegRead(32); err == nil {
		t.Fatal("out of range read should fail")
	}
	if err := r.RegWrite(-1, 0); err == nil {
		t.Fatal("out of range write should fail")
	}
}

func TestRegsMask(t *testing.T) {
	r := NewRegs(32, 4)
	r.RegWrite(0, ^uint64(0))
	val, _ := r.RegRead(0)
	if val != 0xffffffff {
		t.Fatalf("mask not applied: %#x", val)
	}
}

func TestRegsContext(t *testing.T) {
	r := NewRegs(64, 4)
	for i := 0; i < 4; i++ {
		r.RegWrite(i, uint64(i)*10)
	}
	ctx := r.ContextSave(nil)
	r.RegWrite(2, 999)
	if err := r.ContextRestore(ctx); err != nil {
		t.Fatal(err)
	}
	val, _ := r.RegRead(2)
	if val != 20 {
		t.Fatalf("restore lost value: %d", val)
	}
	if err := r.ContextRestore(make([]uint64, 3)); err == nil {
		t.Fatal("mismatched context size should fail")
	}
}
