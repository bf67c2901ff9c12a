package memory

import (
	"testing"

	"symexcore/smt"
)

func TestArrayMemoryByteSymmetryLittleEndian(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, LittleEndian, 1<<20)
	addr, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := m.Write(addr, ctx.Const(32, 0x11223344), 32); err != nil {
		t.Fatalf("write: %v", err)
	}

	b0, err := m.Read(addr, 8)
	if err != nil {
		t.Fatalf("read byte 0: %v", err)
	}
	if b0.ConstValue().Int64() != 0x44 {
		t.Fatalf("byte 0 = 0x%x, want 0x44 (little endian low byte first)", b0.ConstValue())
	}

	whole, err := m.Read(addr, 32)
	if err != nil {
		t.Fatalf("read word: %v", err)
	}
	if whole.ConstValue().Int64() != 0x11223344 {
		t.Fatalf("round trip = 0x%x, want 0x11223344", whole.ConstValue())
	}
}

func TestArrayMemoryByteSymmetryBigEndian(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, BigEndian, 1<<20)
	addr, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := m.Write(addr, ctx.Const(32, 0x11223344), 32); err != nil {
		t.Fatalf("write: %v", err)
	}

	b0, err := m.Read(addr, 8)
	if err != nil {
		t.Fatalf("read byte 0: %v", err)
	}
	if b0.ConstValue().Int64() != 0x11 {
		t.Fatalf("byte 0 = 0x%x, want 0x11 (big endian high byte first)", b0.ConstValue())
	}
}

func TestArrayMemoryOutOfBounds(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, LittleEndian, 1<<20)
	addr, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	// Straddle the end of the 4-byte region.
	if _, err := m.Read(addr+2, 32); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds straddling region end, got %v", err)
	}
}

func TestArrayMemoryNullPointer(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, LittleEndian, 1<<20)
	if _, err := m.Read(0, 32); err != ErrNullPointer {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
}

func TestArrayMemoryReadOnlyRejectsWrite(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, LittleEndian, 1<<20)
	m.MapStatic(0x1000, []byte{1, 2, 3, 4}, true)

	if err := m.Write(0x1000, ctx.Const(32, 0), 32); err != ErrWritingToStaticMemoryProhibited {
		t.Fatalf("expected ErrWritingToStaticMemoryProhibited, got %v", err)
	}

	v, err := m.Read(0x1000, 32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v.ConstValue().Int64() != 0x04030201 {
		t.Fatalf("static bytes = 0x%x, want 0x04030201", v.ConstValue())
	}
}

func TestArrayMemoryCloneIsIndependent(t *testing.T) {
	ctx := smt.NewContext()
	m := NewArrayMemory(ctx, LittleEndian, 1<<20)
	addr, _ := m.Allocate(32)
	m.Write(addr, ctx.Const(32, 1), 32)

	clone := m.Clone().(*ArrayMemory)
	clone.Write(addr, ctx.Const(32, 2), 32)

	orig, _ := m.Read(addr, 32)
	cloned, _ := clone.Read(addr, 32)
	if orig.ConstValue().Int64() != 1 {
		t.Fatalf("original mutated by clone write: got %v", orig.ConstValue())
	}
	if cloned.ConstValue().Int64() != 2 {
		t.Fatalf("clone write didn't stick: got %v", cloned.ConstValue())
	}
}

func TestObjectMemoryByteSymmetry(t *testing.T) {
	ctx := smt.NewContext()
	m := NewObjectMemory(ctx, LittleEndian)
	addr, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := m.Write(addr, ctx.Const(32, 0xAABBCCDD), 32); err != nil {
		t.Fatalf("write: %v", err)
	}
	low, err := m.Read(addr, 8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if low.ConstValue().Int64() != 0xDD {
		t.Fatalf("byte 0 = 0x%x, want 0xDD", low.ConstValue())
	}
}

func TestObjectMemoryRejectsCrossObjectAccess(t *testing.T) {
	ctx := smt.NewContext()
	m := NewObjectMemory(ctx, LittleEndian)
	a, err := m.Allocate(32)
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	if _, err := m.Allocate(32); err != nil {
		t.Fatalf("allocate b: %v", err)
	}

	// Straddling from a into the gap/b should fail, unlike a flat array
	// where two adjacent allocations might be misread as contiguous.
	if _, err := m.Read(a, 64); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds reading across object boundary, got %v", err)
	}
}

func TestObjectMemoryNonPowerOfTwoRejected(t *testing.T) {
	ctx := smt.NewContext()
	m := NewObjectMemory(ctx, LittleEndian)
	if _, err := m.Allocate(24); err != ErrNotPowerOfTwo {
		t.Fatalf("expected ErrNotPowerOfTwo, got %v", err)
	}
}
