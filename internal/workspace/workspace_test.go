package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/pkg/elf"
)

// buildTestImage constructs a minimal in-memory File directly, with one
// executable .text section, so SectionContaining has something to resolve
// addresses against.
func buildTestImage(t *testing.T) *elf.File {
	t.Helper()
	raw := make([]byte, 0x1040)

	text := elf.Shdr64{
		NameOff: 0,
		Type:    elf.SHT_PROGBITS,
		Flags:   elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		Addr:    0x400000,
		Off:     0x1000,
		Size:    0x40,
	}

	return elf.NewFile(raw, elf.Header64{}, nil, []elf.Section{{Name: ".text", Header: text}})
}

func TestWriteAtRecordsDependencyAndRejectsCollision(t *testing.T) {
	ws := &Workspace{File: buildTestImage(t), Manifest: manifest.New()}

	require.NoError(t, ws.WriteAt(0x400010, []byte{0xAA, 0xBB}, "first patch"))
	assert.Error(t, ws.WriteAt(0x400011, []byte{0xCC}, "second patch"),
		"expected a collision error overlapping the first write")
	assert.NoError(t, ws.WriteAt(0x400020, []byte{0xCC}, "disjoint patch"))
}

func TestKnownBytesLocateAndAny(t *testing.T) {
	ws := &Workspace{File: buildTestImage(t), Manifest: manifest.New()}
	require.NoError(t, ws.WriteAt(0x400004, []byte{0x11, 0x22, 0x33, 0x44}, "marker"))

	k := KnownBytesIn(ws)
	va, data, ok := k.Locate([]byte{0x11, 0x22, 0x33, 0x44})
	require.True(t, ok)
	assert.Equal(t, uint64(0x400004), va)
	assert.Len(t, data, 4)

	anyVA, anyData := k.Any(4)
	assert.Equal(t, uint64(0x400000), anyVA)
	assert.Len(t, anyData, 4)
}
