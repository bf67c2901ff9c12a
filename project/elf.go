package project

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"symexcore/memory"
)

// archRegistry maps an ELF machine field to its Architecture factory.
// Architecture implementations register themselves here rather than
// project importing arch/armv6m directly, so adding a second target
// never forces project to depend on every lowering it supports.
var archRegistry = map[elf.Machine]func() Architecture{}

// RegisterArchitecture associates an ELF e_machine value with a factory
// for its Architecture implementation. Architecture packages call this
// from an init() so FromELF can pick the right translator purely from
// the file's own header.
func RegisterArchitecture(machine elf.Machine, factory func() Architecture) {
	archRegistry[machine] = factory
}

// FromELF parses an ELF image, records its LOAD segments, builds a
// symbol table from DWARF (falling back to the ELF symbol table when
// debug info was stripped), and picks an architecture from the file's
// machine field.
func FromELF(data []byte) (*Project, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("project: parse elf: %w", err)
	}
	defer f.Close()

	factory, ok := archRegistry[f.Machine]
	if !ok {
		return nil, fmt.Errorf("project: unsupported architecture %v", f.Machine)
	}
	arch := factory()

	endian := memory.LittleEndian
	if f.ByteOrder.String() == "BigEndian" {
		endian = memory.BigEndian
	}

	wordSize := uint32(32)
	if f.Class == elf.ELFCLASS64 {
		wordSize = 64
	}

	p := New(arch, wordSize, endian, 0, f.Entry)

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Filesz == 0 {
			continue
		}
		buf := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(buf, 0); err != nil && err != io.EOF {
			return nil, fmt.Errorf("project: read segment at 0x%x: %w", prog.Vaddr, err)
		}
		readOnly := prog.Flags&elf.PF_W == 0
		p.AddSegment(Segment{VAddr: prog.Vaddr, Data: buf, ReadOnly: readOnly})
	}

	if err := loadSymbols(f, p); err != nil {
		return nil, err
	}

	p.StackBase = resolveStackBase(f, p)

	return p, nil
}

// stackSymbolNames are the linker-defined stack-top symbols the common
// ARM toolchains emit (cortex-m-rt/newlib "_stack_start"/"__StackTop",
// STM32CubeMX "_estack", and the bare "__stack" some hand-written linker
// scripts use).
var stackSymbolNames = []string{"_stack_start", "__StackTop", "_estack", "__stack"}

// resolveStackBase derives the project's declared stack base: the
// initial stack pointer value. A linker-defined stack-top
// symbol is authoritative when present; otherwise it falls back to the
// ARMv6-M boot convention of reading the initial SP straight out of word
// 0 of the vector table, which every Cortex-M reset sequence relies on
// and which survives even a fully stripped binary.
func resolveStackBase(f *elf.File, p *Project) uint64 {
	for _, name := range stackSymbolNames {
		if addr, ok := p.symbols[name]; ok {
			return addr
		}
	}
	return vectorTableStackPointer(f, p)
}

// vectorTableStackPointer reads the first word of the lowest-addressed
// LOAD segment, which for an ARMv6-M image is the vector table: word 0
// is the value loaded into SP out of reset, word 1 the reset handler
// address.
func vectorTableStackPointer(f *elf.File, p *Project) uint64 {
	if len(p.segments) == 0 {
		return 0
	}
	base := &p.segments[0]
	for i := range p.segments[1:] {
		if p.segments[i+1].VAddr < base.VAddr {
			base = &p.segments[i+1]
		}
	}
	if len(base.Data) < 4 {
		return 0
	}
	return uint64(f.ByteOrder.Uint32(base.Data[0:4]))
}

// loadSymbols prefers DWARF subprogram/variable names and falls back to
// the plain ELF symbol table for binaries built without debug info.
func loadSymbols(f *elf.File, p *Project) error {
	if dw, err := openDWARF(f); err == nil {
		reader := dw.Reader()
		for {
			entry, err := reader.Next()
			if err != nil || entry == nil {
				break
			}
			if entry.Tag != dwarf.TagSubprogram && entry.Tag != dwarf.TagVariable {
				continue
			}
			name, _ := entry.Val(dwarf.AttrName).(string)
			low, ok := entry.Val(dwarf.AttrLowpc).(uint64)
			if name == "" || !ok {
				continue
			}
			p.SetSymbol(name, low)
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		// No symbol table at all is common in stripped release binaries;
		// DWARF (or an empty table) is all callers get.
		return nil
	}
	for _, s := range syms {
		if s.Name == "" || elf.ST_TYPE(s.Info) != elf.STT_FUNC && elf.ST_TYPE(s.Info) != elf.STT_OBJECT {
			continue
		}
		if _, exists := p.symbols[s.Name]; !exists {
			p.SetSymbol(s.Name, s.Value)
		}
	}
	return nil
}

// openDWARF builds the file's debug info directly from its named debug
// sections, inflating any SHF_COMPRESSED section by hand. ARM firmware
// toolchains routinely ship compressed DWARF to keep the image small, so
// this is the common path rather than an edge case.
func openDWARF(f *elf.File) (*dwarf.Data, error) {
	sections := map[string][]byte{}
	for _, name := range []string{"abbrev", "aranges", "frame", "info", "line", "pubnames", "ranges", "str"} {
		raw, err := sectionBytes(f, ".debug_"+name)
		if err != nil {
			return nil, err
		}
		sections[name] = raw
	}
	return dwarf.New(sections["abbrev"], sections["aranges"], sections["frame"],
		sections["info"], sections["line"], sections["pubnames"],
		sections["ranges"], sections["str"])
}

// sectionBytes returns name's uncompressed contents, or nil if the
// binary carries no such section.
func sectionBytes(f *elf.File, name string) ([]byte, error) {
	s := f.Section(name)
	if s == nil {
		return nil, nil
	}
	if s.Flags&elf.SHF_COMPRESSED == 0 {
		return s.Data()
	}
	return inflateCompressedSection(f, s)
}

// inflateCompressedSection strips the ELF compression header
// (Elf32_Chdr/Elf64_Chdr: type, reserved/size, size, addralign) in front
// of an SHF_COMPRESSED section's payload and inflates the zlib stream
// behind it.
func inflateCompressedSection(f *elf.File, s *elf.Section) ([]byte, error) {
	r := s.Open()
	headerLen := 12 // Elf32_Chdr: ch_type, ch_size, ch_addralign, all uint32
	if f.Class == elf.ELFCLASS64 {
		headerLen = 24 // Elf64_Chdr: ch_type(4) + reserved(4) + ch_size(8) + ch_addralign(8)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("project: read compression header for %s: %w", s.Name, err)
	}
	compressionType := f.ByteOrder.Uint32(header[0:4])
	const compressZlib = 1 // ELFCOMPRESS_ZLIB
	if compressionType != compressZlib {
		return nil, fmt.Errorf("project: unsupported compression type %d in %s", compressionType, s.Name)
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("project: inflate %s: %w", s.Name, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("project: inflate %s: %w", s.Name, err)
	}
	return out, nil
}
