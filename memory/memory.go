// Package memory implements the symbolic address space: a
// word-addressable store of symbolic bitvectors with allocation,
// bounds, and endianness semantics. Two interchangeable
// implementations are provided: ArrayMemory (one flat byte-Expr array)
// and ObjectMemory (a bump-allocated map of named objects).
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"

	"symexcore/smt"
)

// Endianness governs byte ordering for multi-byte reads and writes.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

var (
	ErrZeroSizedAllocation          = errors.New("memory: zero-sized allocation")
	ErrNotPowerOfTwo                = errors.New("memory: allocation size is not a power of two")
	ErrAddressSpaceExhausted        = errors.New("memory: address space exhausted")
	ErrOutOfBounds                  = errors.New("memory: access out of bounds")
	ErrNullPointer                  = errors.New("memory: null pointer dereference")
	ErrBitsNotMultipleOfBytes       = errors.New("memory: bit width is not a multiple of 8")
	ErrWritingToStaticMemoryProhibited = errors.New("memory: write to read-only segment prohibited")
)

// Memory is the interface ArrayMemory and ObjectMemory both satisfy. All
// addresses here are concrete; concretizing a symbolic address into one
// or more candidate addresses and forking once per candidate is the
// executor's responsibility, not this package's.
type Memory interface {
	// Allocate reserves a region of the given bit width and returns its
	// base address.
	Allocate(bits uint32) (uint64, error)
	// Read returns an Expr of exactly bits width read from addr.
	Read(addr uint64, bits uint32) (*smt.Expr, error)
	// Write stores value (which must be exactly bits wide) at addr.
	Write(addr uint64, value *smt.Expr, bits uint32) error
	// MarkReadOnly flags [addr, addr+bits/8) as backed by a read-only ELF
	// segment; subsequent Writes in that range fail.
	MarkReadOnly(addr uint64, bits uint32)
	// Clone returns an independent copy for use by a forked path.
	Clone() Memory
}

func checkBits(bits uint32) error {
	if bits == 0 || bits%8 != 0 {
		return ErrBitsNotMultipleOfBytes
	}
	return nil
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

func byteOrder(e Endianness) binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// composeBytes assembles bits/8 byte-wide Exprs (cells[0] is the
// project-endianness-defined first byte) into one bits-wide Expr.
func composeBytes(ctx *smt.Context, cells []*smt.Expr, order binary.ByteOrder) *smt.Expr {
	n := len(cells)
	ordered := make([]*smt.Expr, n)
	for i, c := range cells {
		idx := i
		if order == binary.BigEndian {
			idx = n - 1 - i
		}
		ordered[idx] = c
	}
	// ordered[0] is least significant.
	result := ordered[0]
	for i := 1; i < n; i++ {
		result = ctx.Concat(ordered[i], result)
	}
	return result
}

// decomposeBytes splits a bits-wide Expr into bits/8 byte-wide Exprs,
// cells[0] being the first byte in project endianness.
func decomposeBytes(ctx *smt.Context, value *smt.Expr, nbytes int, order binary.ByteOrder) []*smt.Expr {
	cells := make([]*smt.Expr, nbytes)
	for i := 0; i < nbytes; i++ {
		lo := uint32(i * 8)
		cells[i] = ctx.Extract(value, lo+7, lo)
	}
	if order == binary.BigEndian {
		for i, j := 0, nbytes-1; i < j; i, j = i+1, j-1 {
			cells[i], cells[j] = cells[j], cells[i]
		}
	}
	return cells
}

func fmtRange(addr uint64, bits uint32) string {
	return fmt.Sprintf("[0x%x, 0x%x)", addr, addr+uint64(bits/8))
}
