// Package elf provides ELF64 binary format building utilities.
// This package has no dependencies on the compiler internals and can be used
// standalone for generating ELF executables.
package elf

import (
	"encoding/binary"
)

// ELF64 constants
const (
	// ELF identification
	ELFMAG0       = 0x7f
	ELFMAG1       = 'E'
	ELFMAG2       = 'L'
	ELFMAG3       = 'F'
	ELFCLASS64    = 2
	ELFDATA2LSB   = 1 // Little endian
	ELFDATA2MSB   = 2 // Big endian (used only as the stripper's header obfuscation flag)
	EV_CURRENT    = 1
	ELFOSABI_NONE = 0

	// ELF types
	ET_EXEC = 2 // Executable file

	// Machine types
	EM_X86_64 = 62

	// Program header types
	PT_NULL = 0
	PT_LOAD = 1

	// Program header flags
	PF_X = 0x1 // Execute
	PF_W = 0x2 // Write
	PF_R = 0x4 // Read

	// Sizes
	ELF64HeaderSize = 64
	ELF64PhdrSize   = 56
	ELF64ShdrSize   = 64
	PageSize        = 0x1000
	DefaultCodeBase = 0x400000
	DefaultBSSBase  = 0x600000

	// Section header types (the handful a patcher needs to recognise)
	SHT_NULL     = 0
	SHT_PROGBITS = 1
	SHT_NOBITS   = 8

	// Section header flags
	SHF_WRITE     = 0x1
	SHF_ALLOC     = 0x2
	SHF_EXECINSTR = 0x4
)

// Header64 represents the ELF64 file header.
type Header64 struct {
	Ident     [16]byte // ELF identification
	Type      uint16   // Object file type
	Machine   uint16   // Machine type
	Version   uint32   // Object file version
	Entry     uint64   // Entry point address
	PhOff     uint64   // Program header offset
	ShOff     uint64   // Section header offset
	Flags     uint32   // Processor-specific flags
	EhSize    uint16   // ELF header size
	PhEntSize uint16   // Program header entry size
	PhNum     uint16   // Number of program headers
	ShEntSize uint16   // Section header entry size
	ShNum     uint16   // Number of section headers
	ShStrNdx  uint16   // Section name string table index
}

// Phdr64 represents an ELF64 program header.
type Phdr64 struct {
	Type   uint32 // Segment type
	Flags  uint32 // Segment flags
	Off    uint64 // File offset
	VAddr  uint64 // Virtual address
	PAddr  uint64 // Physical address
	FileSz uint64 // Size in file
	MemSz  uint64 // Size in memory
	Align  uint64 // Alignment
}

// StrippedImage describes the single-segment, section-table-free ELF the
// stripper produces: one PT_LOAD segment holding the ELF header, the program
// header and the payload, loaded at vaddr with p_offset=0, entered at entry.
type StrippedImage struct {
	Payload []byte
	VAddr   uint64
	Entry   uint64
	Flags   uint32
}

// Build writes img as a minimal ELF header plus a single program
// header plus the raw payload, with p_offset=0 (the payload starts
// immediately after the program header, no page alignment) and the
// header deliberately mangled: e_shentsize is set to the nonsensical
// 0xFFFF and EI_DATA is flipped to ELFDATA2MSB even though the file's
// actual contents - including this header's own remaining multi-byte
// fields - stay little-endian. Both are read by a disassembler's loader
// logic before it has decided whether to trust the file at all, and a
// tool that takes EI_DATA at face value will misdecode every other
// multi-byte field in the header right along with it.
func (img StrippedImage) Build() []byte {
	const numPhdrs = 1
	phdrOff := uint64(ELF64HeaderSize)
	payloadOff := phdrOff + ELF64PhdrSize

	out := make([]byte, 0, int(payloadOff)+len(img.Payload))

	hdr := Header64{
		Type:      ET_EXEC,
		Machine:   EM_X86_64,
		Version:   EV_CURRENT,
		Entry:     img.Entry,
		PhOff:     phdrOff,
		ShOff:     0,
		Flags:     0,
		EhSize:    ELF64HeaderSize,
		PhEntSize: ELF64PhdrSize,
		PhNum:     numPhdrs,
		ShEntSize: 0xFFFF,
		ShNum:     0,
		ShStrNdx:  0,
	}
	hdr.Ident[0] = ELFMAG0
	hdr.Ident[1] = ELFMAG1
	hdr.Ident[2] = ELFMAG2
	hdr.Ident[3] = ELFMAG3
	hdr.Ident[4] = ELFCLASS64
	hdr.Ident[5] = ELFDATA2MSB
	hdr.Ident[6] = EV_CURRENT
	hdr.Ident[7] = ELFOSABI_NONE

	out = append(out, hdr.Ident[:]...)
	out = appendLE16(out, hdr.Type)
	out = appendLE16(out, hdr.Machine)
	out = appendLE32(out, hdr.Version)
	out = appendLE64(out, hdr.Entry)
	out = appendLE64(out, hdr.PhOff)
	out = appendLE64(out, hdr.ShOff)
	out = appendLE32(out, hdr.Flags)
	out = appendLE16(out, hdr.EhSize)
	out = appendLE16(out, hdr.PhEntSize)
	out = appendLE16(out, hdr.PhNum)
	out = appendLE16(out, hdr.ShEntSize)
	out = appendLE16(out, hdr.ShNum)
	out = appendLE16(out, hdr.ShStrNdx)

	size := payloadOff + uint64(len(img.Payload))
	phdr := Phdr64{
		Type:   PT_LOAD,
		Flags:  img.Flags,
		Off:    0,
		VAddr:  img.VAddr,
		PAddr:  img.VAddr,
		FileSz: size,
		MemSz:  size,
		Align:  PageSize,
	}
	out = writePhdr(out, &phdr)

	out = append(out, img.Payload...)
	return out
}

// writePhdr writes a program header.
func writePhdr(out []byte, phdr *Phdr64) []byte {
	out = appendLE32(out, phdr.Type)
	out = appendLE32(out, phdr.Flags)
	out = appendLE64(out, phdr.Off)
	out = appendLE64(out, phdr.VAddr)
	out = appendLE64(out, phdr.PAddr)
	out = appendLE64(out, phdr.FileSz)
	out = appendLE64(out, phdr.MemSz)
	out = appendLE64(out, phdr.Align)
	return out
}

// Little-endian append helpers
func appendLE16(out []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(out, buf[:]...)
}

func appendLE32(out []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(out, buf[:]...)
}

func appendLE64(out []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(out, buf[:]...)
}

// Little-endian read helpers, the reader-side counterpart to the append
// helpers above.
func readLE16(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }
func readLE32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }
func readLE64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }
