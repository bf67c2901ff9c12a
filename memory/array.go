package memory

import (
	"symexcore/smt"
)

// region tracks one allocated span of the flat array, in byte addresses.
type region struct {
	base     uint64
	size     uint64
	readOnly bool
}

func (r region) contains(addr, size uint64) bool {
	return addr >= r.base && addr+size <= r.base+r.size
}

// ArrayMemory is one flat byte-addressable array of symbolic byte Exprs,
// bounds-checked against the regions Allocate has carved out. This is the
// implementation used to back a project's stack and heap.
type ArrayMemory struct {
	ctx      *smt.Context
	endian   Endianness
	cells    map[uint64]*smt.Expr // sparse: unread/unwritten cells default to a fresh zero byte lazily
	regions  []region
	nextFree uint64
	limit    uint64
}

// nullPageSize is reserved at the bottom of the address space so that
// Allocate never hands out address 0: Read/Write treat addr 0 as a null
// dereference regardless of whether any region claims it, so a region
// starting there would be permanently unreadable.
const nullPageSize = 8

// NewArrayMemory creates an empty array memory spanning addresses
// [0, limit) and using the given endianness for multi-byte accesses.
func NewArrayMemory(ctx *smt.Context, endian Endianness, limit uint64) *ArrayMemory {
	return &ArrayMemory{
		ctx:      ctx,
		endian:   endian,
		cells:    make(map[uint64]*smt.Expr),
		nextFree: nullPageSize,
		limit:    limit,
	}
}

// Allocate reserves bits/8 contiguous, previously-unallocated bytes and
// returns the base address of the new region.
func (m *ArrayMemory) Allocate(bits uint32) (uint64, error) {
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

	// Align the base to the allocation's own size, matching how a real
	// allocator avoids crossing alignment boundaries.
	base := m.nextFree
	if rem := base % size; rem != 0 {
		base += size - rem
	}
	if base+size > m.limit || base+size < base {
		return 0, ErrAddressSpaceExhausted
	}

	m.regions = append(m.regions, region{base: base, size: size})
	m.nextFree = base + size
	return base, nil
}

// MapStatic registers a pre-existing region (e.g. an ELF LOAD segment)
// without bumping the allocator pointer, optionally marking it read-only
// and seeding its bytes from data.
func (m *ArrayMemory) MapStatic(addr uint64, data []byte, readOnly bool) {
	m.regions = append(m.regions, region{base: addr, size: uint64(len(data)), readOnly: readOnly})
	for i, b := range data {
		m.cells[addr+uint64(i)] = m.ctx.Const(8, uint64(b))
	}
	if end := addr + uint64(len(data)); end > m.nextFree {
		m.nextFree = end
	}
}

func (m *ArrayMemory) findRegion(addr, size uint64) *region {
	for i := range m.regions {
		if m.regions[i].contains(addr, size) {
			return &m.regions[i]
		}
	}
	return nil
}

func (m *ArrayMemory) cell(addr uint64) *smt.Expr {
	if e, ok := m.cells[addr]; ok {
		return e
	}
	e := m.ctx.Const(8, 0)
	m.cells[addr] = e
	return e
}

// Read returns an Expr of exactly bits width assembled from bits/8
// byte cells starting at addr, in project endianness.
func (m *ArrayMemory) Read(addr uint64, bits uint32) (*smt.Expr, error) {
	if addr == 0 {
		return nil, ErrNullPointer
	}
	if err := checkBits(bits); err != nil {
		return nil, err
	}
	size := uint64(bits / 8)
	if m.findRegion(addr, size) == nil {
		return nil, ErrOutOfBounds
	}

	cells := make([]*smt.Expr, size)
	for i := uint64(0); i < size; i++ {
		cells[i] = m.cell(addr + i)
	}
	return composeBytes(m.ctx, cells, byteOrder(m.endian)), nil
}

// Write stores a bits-wide value at addr, decomposed into byte cells in
// project endianness.
func (m *ArrayMemory) Write(addr uint64, value *smt.Expr, bits uint32) error {
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
	r := m.findRegion(addr, size)
	if r == nil {
		return ErrOutOfBounds
	}
	if r.readOnly {
		return ErrWritingToStaticMemoryProhibited
	}

	cells := decomposeBytes(m.ctx, value, int(size), byteOrder(m.endian))
	for i, c := range cells {
		m.cells[addr+uint64(i)] = c
	}
	return nil
}

// MarkReadOnly flags every region overlapping [addr, addr+bits/8) as
// read-only.
func (m *ArrayMemory) MarkReadOnly(addr uint64, bits uint32) {
	size := uint64(bits / 8)
	for i := range m.regions {
		if m.regions[i].base < addr+size && addr < m.regions[i].base+m.regions[i].size {
			m.regions[i].readOnly = true
		}
	}
}

// Clone returns a deep copy suitable for an independently-mutated forked
// path; the underlying Exprs are shared (they're immutable and owned by
// the shared Context) but the cell map and region list are not.
func (m *ArrayMemory) Clone() Memory {
	clone := &ArrayMemory{
		ctx:      m.ctx,
		endian:   m.endian,
		cells:    make(map[uint64]*smt.Expr, len(m.cells)),
		regions:  append([]region(nil), m.regions...),
		nextFree: m.nextFree,
		limit:    m.limit,
	}
	for k, v := range m.cells {
		clone.cells[k] = v
	}
	return clone
}
