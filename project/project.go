// Package project owns a loaded ELF image: its segment table, its
// symbol table derived from DWARF, the architecture-specific translator,
// and the hook maps a RunConfig binds before exploration starts. A
// Project is built once and referenced read-only by every path.
package project

import (
	"errors"
	"fmt"
	"log/slog"

	"symexcore/ga"
	"symexcore/memory"
	"symexcore/smt"
)

// PCHookKind enumerates the actions a PC hook can take when execution
// reaches its address.
type PCHookKind int

const (
	Continue PCHookKind = iota
	Suppress
	EndSuccess
	EndFailure
	IntrinsicHook
)

// PCHook is the action bound to a program counter value.
type PCHook struct {
	Kind          PCHookKind
	FailureReason string // only meaningful when Kind == EndFailure
	IntrinsicName string // only meaningful when Kind == IntrinsicHook
}

// RegisterHook transforms a register value around a read or write.
type RegisterHook func(name string, value *ga.Operand) *ga.Operand

// MemoryHook transforms a memory access around a read or write.
type MemoryHook func(addr uint64, width uint32) (skip bool)

// Segment is one concrete LOAD range from the ELF, keyed by its virtual
// address.
type Segment struct {
	VAddr    uint64
	Data     []byte
	ReadOnly bool
}

// Architecture is the per-target vtable a Project delegates instruction
// decode to. arch/armv6m implements this; the interface lives here,
// rather than alongside the implementation, so project never imports an
// architecture package and picking architectures stays the composition
// root's job.
type Architecture interface {
	Name() string
	Translate(bytes []byte, pc uint64, endian memory.Endianness) (ga.Instruction, uint32, error)
	// MaxInstructionBytes bounds how much of the image Project reads
	// speculatively before handing bytes to Translate.
	MaxInstructionBytes() uint32
}

var ErrEntryFunctionNotFound = errors.New("project: entry function not found")
var ErrNoSegmentAtAddress = errors.New("project: no segment contains address")

// Project is the logically-immutable, shared-by-every-path owner of a
// loaded image. It is constructed once by FromELF and never mutated
// after hooks are bound.
type Project struct {
	Arch     Architecture
	WordSize uint32
	Endian   memory.Endianness
	// StackBase is the initial stack pointer value (FromELF resolves it
	// from a linker stack symbol or the vector table; vm.NewInitialState
	// seeds SP with it).
	StackBase uint64
	// ResetPC is the architectural reset handler address (the ELF entry
	// point); cmd/symexcore falls back to it when no -entry symbol
	// resolves.
	ResetPC       uint64
	segments      []Segment
	symbols       map[string]uint64
	pcHooks       map[uint64]PCHook
	regReadHooks  map[string]RegisterHook
	regWriteHooks map[string]RegisterHook
	memReadHooks  map[uint64]MemoryHook
	memWriteHooks map[uint64]MemoryHook
	log           *slog.Logger
}

// New assembles a Project directly from already-decoded pieces. FromELF
// (in elf.go) is the usual entry point; this constructor exists so tests
// can build a Project without a real ELF file on disk.
func New(arch Architecture, wordSize uint32, endian memory.Endianness, stackBase, resetPC uint64) *Project {
	return &Project{
		Arch:          arch,
		WordSize:      wordSize,
		Endian:        endian,
		StackBase:     stackBase,
		ResetPC:       resetPC,
		symbols:       make(map[string]uint64),
		pcHooks:       make(map[uint64]PCHook),
		regReadHooks:  make(map[string]RegisterHook),
		regWriteHooks: make(map[string]RegisterHook),
		memReadHooks:  make(map[uint64]MemoryHook),
		memWriteHooks: make(map[uint64]MemoryHook),
		log:           slog.Default().With("component", "project"),
	}
}

// AddSegment registers a concrete LOAD range.
func (p *Project) AddSegment(s Segment) { p.segments = append(p.segments, s) }

// SetSymbol records name's address for later lookup.
func (p *Project) SetSymbol(name string, addr uint64) { p.symbols[name] = addr }

// Symbols exposes the resolved name->address table, e.g. for hook
// binding diagnostics.
func (p *Project) Symbols() map[string]uint64 { return p.symbols }

// SymbolAddress resolves name to its address.
func (p *Project) SymbolAddress(name string) (uint64, error) {
	addr, ok := p.symbols[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrEntryFunctionNotFound, name)
	}
	return addr, nil
}

// segmentAt returns the segment containing addr, or nil.
func (p *Project) segmentAt(addr uint64) *Segment {
	for i := range p.segments {
		s := &p.segments[i]
		if addr >= s.VAddr && addr < s.VAddr+uint64(len(s.Data)) {
			return s
		}
	}
	return nil
}

// FetchInstruction reads up to the architecture's maximum instruction
// width at pc and lifts it via the architecture translator.
func (p *Project) FetchInstruction(pc uint64) (ga.Instruction, uint32, error) {
	seg := p.segmentAt(pc)
	if seg == nil {
		return ga.Instruction{}, 0, fmt.Errorf("%w: 0x%x", ErrNoSegmentAtAddress, pc)
	}
	offset := pc - seg.VAddr
	maxLen := uint64(p.Arch.MaxInstructionBytes())
	end := offset + maxLen
	if end > uint64(len(seg.Data)) {
		end = uint64(len(seg.Data))
	}
	window := seg.Data[offset:end]
	insn, consumed, err := p.Arch.Translate(window, pc, p.Endian)
	if err != nil {
		return ga.Instruction{}, 0, err
	}
	return insn, consumed, nil
}

// PCHookAt returns the hook bound to pc, if any.
func (p *Project) PCHookAt(pc uint64) (PCHook, bool) {
	h, ok := p.pcHooks[pc]
	return h, ok
}

// BindPCHook installs hook at symbol's resolved address. An unresolved
// symbol name only logs a warning and does not abort, since a RunConfig
// is commonly reused across several binaries that each only define a
// subset of hookable symbols.
func (p *Project) BindPCHook(symbolName string, hook PCHook) {
	addr, ok := p.symbols[symbolName]
	if !ok {
		p.log.Warn("pc hook symbol not found, dropping", "symbol", symbolName)
		return
	}
	p.pcHooks[addr] = hook
}

// BindRegisterReadHook installs a read transform on register name.
func (p *Project) BindRegisterReadHook(name string, hook RegisterHook) {
	p.regReadHooks[name] = hook
}

// BindRegisterWriteHook installs a write transform on register name.
func (p *Project) BindRegisterWriteHook(name string, hook RegisterHook) {
	p.regWriteHooks[name] = hook
}

// BindMemoryReadHook installs a read-side hook at addr.
func (p *Project) BindMemoryReadHook(addr uint64, hook MemoryHook) { p.memReadHooks[addr] = hook }

// BindMemoryWriteHook installs a write-side hook at addr.
func (p *Project) BindMemoryWriteHook(addr uint64, hook MemoryHook) { p.memWriteHooks[addr] = hook }

// RegisterReadHook and RegisterWriteHook look up a bound register hook,
// if any.
func (p *Project) RegisterReadHook(name string) (RegisterHook, bool) {
	h, ok := p.regReadHooks[name]
	return h, ok
}

func (p *Project) RegisterWriteHook(name string) (RegisterHook, bool) {
	h, ok := p.regWriteHooks[name]
	return h, ok
}

// MemoryReadHook and MemoryWriteHook look up a bound memory hook at addr,
// if any.
func (p *Project) MemoryReadHook(addr uint64) (MemoryHook, bool) {
	h, ok := p.memReadHooks[addr]
	return h, ok
}

func (p *Project) MemoryWriteHook(addr uint64) (MemoryHook, bool) {
	h, ok := p.memWriteHooks[addr]
	return h, ok
}

// defaultStackSize is reserved below StackBase as the writable stack
// region. The ELF carries no LOAD segment for RAM the linker only
// reserves (never initializes), so the stack region has to be carved
// out here rather than picked up from p.segments.
const defaultStackSize = 1 << 16

// NewMemory builds the symbolic memory for a fresh run, pre-populating
// it with every loaded segment via MapStatic plus a writable stack
// region immediately below StackBase.
func (p *Project) NewMemory(ctx *smt.Context, limit uint64) *memory.ArrayMemory {
	m := memory.NewArrayMemory(ctx, p.Endian, limit)
	for _, s := range p.segments {
		m.MapStatic(s.VAddr, s.Data, s.ReadOnly)
	}
	stackBottom := uint64(0)
	if p.StackBase > defaultStackSize {
		stackBottom = p.StackBase - defaultStackSize
	}
	if p.StackBase > stackBottom {
		m.MapStatic(stackBottom, make([]byte, p.StackBase-stackBottom), false)
	}
	return m
}
