package memory

import (
	"symexcore/smt"
)

// object is one bump-allocated named object: a contiguous run of byte
// cells addressed by an offset from a synthetic base the allocator hands
// out, kept distinct from every other object's address range.
type object struct {
	base     uint64
	size     uint64
	cells    []*smt.Expr // one per byte, lazily zero-filled
	readOnly bool
}

// ObjectMemory is a bump-allocated map of named objects, each with its
// own byte cells and offset space. Unlike ArrayMemory it never models a
// single flat address space shared by every allocation; cross-object
// pointer arithmetic that straddles an object boundary is rejected as
// out-of-bounds rather than silently reading a neighbour's bytes.
// Reads and writes that stay within one object's bounds never touch
// another object's backing bytes, even when two objects happen to sit
// at adjacent addresses.
type ObjectMemory struct {
	ctx      *smt.Context
	endian   Endianness
	objects  []*object
	nextBase uint64
}

// NewObjectMemory creates an empty object memory using the given
// endianness for multi-byte accesses.
func NewObjectMemory(ctx *smt.Context, endian Endianness) *ObjectMemory {
	return &ObjectMemory{ctx: ctx, endian: endian, nextBase: 1}
}

// Allocate creates a new object of bits/8 bytes and returns its base
// address. Object bases never collide and are never zero (zero is
// reserved for the null pointer).
func (m *ObjectMemory) Allocate(bits uint32) (uint64, error) {
	if bits == 0 {
		return 0, ErrZeroSizedAllocation
	}
	if err := checkBits(bits); err != nil {
		return 0, err
	}
	size := uint64(bits / 8)
	if !isPowerOfTwo(size) {
		return 0, ErrNotPowerOfTwo
	}

	base := m.nextBase
	// Leave a one-byte gap between objects so an off-by-one read never
	// silently lands in the next object instead of failing out-of-bounds.
	if base+size+1 < base {
		return 0, ErrAddressSpaceExhausted
	}
	m.objects = append(m.objects, &object{base: base, size: size, cells: make([]*smt.Expr, size)})
	m.nextBase = base + size + 1
	return base, nil
}

func (m *ObjectMemory) find(addr, size uint64) *object {
	for _, o := range m.objects {
		if addr >= o.base && addr+size <= o.base+o.size {
			return o
		}
	}
	return nil
}

func (m *ObjectMemory) cellAt(o *object, addr uint64) *smt.Expr {
	idx := addr - o.base
	if o.cells[idx] == nil {
		o.cells[idx] = m.ctx.Const(8, 0)
	}
	return o.cells[idx]
}

// Read returns an Expr of exactly bits width, failing with ErrOutOfBounds
// if [addr, addr+bits/8) is not wholly contained in one object.
func (m *ObjectMemory) Read(addr uint64, bits uint32) (*smt.Expr, error) {
	if addr == 0 {
		return nil, ErrNullPointer
	}
	if err := checkBits(bits); err != nil {
		return nil, err
	}
	size := uint64(bits / 8)
	o := m.find(addr, size)
	if o == nil {
		return nil, ErrOutOfBounds
	}

	cells := make([]*smt.Expr, size)
	for i := uint64(0); i < size; i++ {
		cells[i] = m.cellAt(o, addr+i)
	}
	return composeBytes(m.ctx, cells, byteOrder(m.endian)), nil
}

// Write stores a bits-wide value at addr, failing the same way Read does
// on an out-of-range or read-only object.
func (m *ObjectMemory) Write(addr uint64, value *smt.Expr, bits uint32) error {
	if addr == 0 {
		return ErrNullPointer
	}
	if err := checkBits(bits); err != nil {
		return err
	}
	if value.Width() != bits {
		return ErrBitsNotMultipleOfBytes
	}
	size := uint64(bits / 8)
	o := m.find(addr, size)
	if o == nil {
		return ErrOutOfBounds
	}
	if o.readOnly {
		return ErrWritingToStaticMemoryProhibited
	}

	cells := decomposeBytes(m.ctx, value, int(size), byteOrder(m.endian))
	for i, c := range cells {
		idx := addr - o.base + uint64(i)
		o.cells[idx] = c
	}
	return nil
}

// MarkReadOnly marks every object overlapping the given range read-only.
func (m *ObjectMemory) MarkReadOnly(addr uint64, bits uint32) {
	size := uint64(bits / 8)
	for _, o := range m.objects {
		if o.base < addr+size && addr < o.base+o.size {
			o.readOnly = true
		}
	}
}

// Clone deep-copies the object table for an independently-mutated forked
// path.
func (m *ObjectMemory) Clone() Memory {
	clone := &ObjectMemory{ctx: m.ctx, endian: m.endian, nextBase: m.nextBase}
	clone.objects = make([]*object, len(m.objects))
	for i, o := range m.objects {
		cells := make([]*smt.Expr, len(o.cells))
		copy(cells, o.cells)
		clone.objects[i] = &object{base: o.base, size: o.size, cells: cells, readOnly: o.readOnly}
	}
	return clone
}
