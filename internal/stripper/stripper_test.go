package stripper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
	"github.com/WintersDeep/cv-ctf/pkg/elf"
)

func TestStripEmitsOnlyTheEntrySection(t *testing.T) {
	raw := make([]byte, 0x2000)
	text := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x90, 0x90, 0x90, 0x90}
	copy(raw[0x1000:], text)
	copy(raw[0x1800:], []byte{0xCA, 0xFE})

	phdrs := []elf.Phdr64{
		{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Off: 0x1000, VAddr: 0x400000, FileSz: 0x800, MemSz: 0x800},
		{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Off: 0x1800, VAddr: 0x401000, FileSz: 0x100, MemSz: 0x200},
	}
	sections := []elf.Section{
		{Name: ".text", Header: elf.Shdr64{Addr: 0x400000, Off: 0x1000, Size: uint64(len(text))}},
		{Name: ".data", Header: elf.Shdr64{Addr: 0x401000, Off: 0x1800, Size: 0x100}},
	}

	entry := uint64(0x400002)
	f := elf.NewFile(raw, elf.Header64{Entry: entry}, phdrs, sections)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(srcPath, []byte("placeholder"), 0755))

	ws := &workspace.Workspace{Path: srcPath, File: f, Manifest: manifest.New()}
	outPath := filepath.Join(dir, "out")

	require.NoError(t, Strip(ws, outPath))

	out, err := os.ReadFile(outPath)
	require.NoError(t, err)

	// EI_DATA is deliberately flipped to ELFDATA2MSB even though the rest
	// of the header stays little-endian.
	require.Equal(t, uint8(elf.ELFDATA2MSB), out[5])

	stripped, err := elf.Parse(out)
	require.NoError(t, err)
	require.Len(t, stripped.Phdrs, 1)

	phdr := stripped.Phdrs[0]
	require.Equal(t, uint64(0), phdr.Off)
	require.Equal(t, uint64(0x400000), phdr.VAddr)
	require.Equal(t, elf.PF_R|elf.PF_X, int(phdr.Flags))

	wantSize := uint64(elf.ELF64HeaderSize+elf.ELF64PhdrSize) + uint64(len(text))
	require.Equal(t, wantSize, phdr.FileSz)
	require.Equal(t, wantSize, phdr.MemSz)

	payload := out[elf.ELF64HeaderSize+elf.ELF64PhdrSize:]
	require.Equal(t, text, payload)

	wantEntry := uint64(0x400000) + uint64(elf.ELF64HeaderSize+elf.ELF64PhdrSize) + (entry - 0x400000)
	require.Equal(t, wantEntry, stripped.Header.Entry)

	require.Equal(t, uint16(0xFFFF), readShEntSize(out))
}

// readShEntSize reads e_shentsize directly from the raw header bytes,
// since elf.Parse has no reason to expose a field nothing else reads.
func readShEntSize(raw []byte) uint16 {
	return uint16(raw[58]) | uint16(raw[59])<<8
}
