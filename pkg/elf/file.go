package elf

import (
	"fmt"
)

// Section is a parsed ELF64 section: its resolved name and its header.
type Section struct {
	Name   string
	Header Shdr64
}

// End returns the virtual address one past the end of this section.
func (s Section) End() uint64 { return s.Header.Addr + s.Header.Size }

// File is a parsed, mutable in-memory ELF64 image: the header, program
// headers and section headers are decoded up front, while section contents
// are read/written directly against the backing byte slice so patches apply
// in place exactly as they would against the file on disk.
type File struct {
	raw      []byte
	Header   Header64
	Phdrs    []Phdr64
	Sections []Section
}

// NewFile assembles a File from already-decoded parts, bypassing Parse.
// Exists for callers (tests, or code synthesising a brand new image rather
// than patching an existing one) that already have the pieces in hand.
func NewFile(raw []byte, header Header64, phdrs []Phdr64, sections []Section) *File {
	return &File{raw: raw, Header: header, Phdrs: phdrs, Sections: sections}
}

// Parse decodes an ELF64 image already in memory. It does not copy raw -
// callers that intend to mutate the image via WriteAt should make sure raw
// is owned exclusively by the returned File.
func Parse(raw []byte) (*File, error) {
	if len(raw) < ELF64HeaderSize {
		return nil, fmt.Errorf("elf: file too small to contain a header (%d bytes)", len(raw))
	}
	if raw[0] != ELFMAG0 || raw[1] != ELFMAG1 || raw[2] != ELFMAG2 || raw[3] != ELFMAG3 {
		return nil, fmt.Errorf("elf: missing ELF magic bytes")
	}
	if raw[4] != ELFCLASS64 {
		return nil, fmt.Errorf("elf: only ELF64 is supported")
	}

	hdr := Header64{}
	copy(hdr.Ident[:], raw[0:16])
	hdr.Type = readLE16(raw[16:])
	hdr.Machine = readLE16(raw[18:])
	hdr.Version = readLE32(raw[20:])
	hdr.Entry = readLE64(raw[24:])
	hdr.PhOff = readLE64(raw[32:])
	hdr.ShOff = readLE64(raw[40:])
	hdr.Flags = readLE32(raw[48:])
	hdr.EhSize = readLE16(raw[52:])
	hdr.PhEntSize = readLE16(raw[54:])
	hdr.PhNum = readLE16(raw[56:])
	hdr.ShEntSize = readLE16(raw[58:])
	hdr.ShNum = readLE16(raw[60:])
	hdr.ShStrNdx = readLE16(raw[62:])

	f := &File{raw: raw, Header: hdr}

	for i := 0; i < int(hdr.PhNum); i++ {
		off := int(hdr.PhOff) + i*int(hdr.PhEntSize)
		if off+ELF64PhdrSize > len(raw) {
			return nil, fmt.Errorf("elf: program header %d out of bounds", i)
		}
		f.Phdrs = append(f.Phdrs, Phdr64{
			Type:   readLE32(raw[off:]),
			Flags:  readLE32(raw[off+4:]),
			Off:    readLE64(raw[off+8:]),
			VAddr:  readLE64(raw[off+16:]),
			PAddr:  readLE64(raw[off+24:]),
			FileSz: readLE64(raw[off+32:]),
			MemSz:  readLE64(raw[off+40:]),
			Align:  readLE64(raw[off+48:]),
		})
	}

	var shdrs []Shdr64
	for i := 0; i < int(hdr.ShNum); i++ {
		off := int(hdr.ShOff) + i*int(hdr.ShEntSize)
		if off+ELF64ShdrSize > len(raw) {
			return nil, fmt.Errorf("elf: section header %d out of bounds", i)
		}
		shdrs = append(shdrs, readShdr64(raw, off))
	}

	var shstrtab []byte
	if int(hdr.ShStrNdx) < len(shdrs) {
		strtabHdr := shdrs[hdr.ShStrNdx]
		shstrtab = raw[strtabHdr.Off : strtabHdr.Off+strtabHdr.Size]
	}

	for _, sh := range shdrs {
		f.Sections = append(f.Sections, Section{
			Name:   cstring(shstrtab, sh.NameOff),
			Header: sh,
		})
	}

	return f, nil
}

func cstring(table []byte, off uint32) string {
	if table == nil || int(off) >= len(table) {
		return ""
	}
	end := int(off)
	for end < len(table) && table[end] != 0 {
		end++
	}
	return string(table[off:end])
}

// SectionsContaining returns every section whose address range contains
// address. The boundary check is inclusive on both ends, matching the
// original implementation's get_all_sections_containing - in a healthy,
// correctly patched binary this should only ever return 0 or 1 sections.
func (f *File) SectionsContaining(address uint64) []Section {
	var matches []Section
	for _, s := range f.Sections {
		start := s.Header.Addr
		end := start + s.Header.Size
		if address >= start && address <= end {
			matches = append(matches, s)
		}
	}
	return matches
}

// SectionContaining returns the single section containing address, or an
// error if none or more than one section claims it.
func (f *File) SectionContaining(address uint64) (Section, error) {
	matches := f.SectionsContaining(address)
	switch len(matches) {
	case 0:
		return Section{}, fmt.Errorf("elf: no section contains address 0x%016x", address)
	case 1:
		return matches[0], nil
	default:
		return Section{}, fmt.Errorf("elf: address 0x%016x appears in %d overlapping sections", address, len(matches))
	}
}

// fileOffset translates a virtual address within section s to a byte offset
// in the backing file image.
func fileOffset(s Section, address uint64) uint64 {
	return s.Header.Off + (address - s.Header.Addr)
}

// ReadAt reads length bytes starting at virtual address addr.
func (f *File) ReadAt(addr uint64, length int) ([]byte, error) {
	section, err := f.SectionContaining(addr)
	if err != nil {
		return nil, err
	}
	start := fileOffset(section, addr)
	end := start + uint64(length)
	if end > uint64(len(f.raw)) {
		return nil, fmt.Errorf("elf: read of %d bytes at 0x%016x runs past end of file", length, addr)
	}
	out := make([]byte, length)
	copy(out, f.raw[start:end])
	return out, nil
}

// WriteAt writes data at virtual address addr directly into the backing
// image. It performs no dependency bookkeeping - callers that need
// collision checking against a patch manifest should go through the
// workspace layer, which wraps this method.
func (f *File) WriteAt(addr uint64, data []byte) error {
	section, err := f.SectionContaining(addr)
	if err != nil {
		return err
	}
	start := fileOffset(section, addr)
	end := start + uint64(len(data))
	if end > uint64(len(f.raw)) {
		return fmt.Errorf("elf: write of %d bytes at 0x%016x runs past end of file", len(data), addr)
	}
	copy(f.raw[start:end], data)
	return nil
}

// Bytes returns the raw backing image, including any in-place patches
// applied via WriteAt.
func (f *File) Bytes() []byte { return f.raw }
