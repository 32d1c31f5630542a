package integrity

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
	"github.com/WintersDeep/cv-ctf/pkg/amd64"
	"github.com/WintersDeep/cv-ctf/pkg/elf"
)

func buildExecutableImage(t *testing.T, size int, fill byte) *elf.File {
	t.Helper()
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = fill
	}
	sec := elf.Shdr64{Type: elf.SHT_PROGBITS, Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR, Addr: 0, Off: 0, Size: uint64(size)}
	return elf.NewFile(raw, elf.Header64{}, nil, []elf.Section{{Name: ".text", Header: sec}})
}

func generatorDescriptor(start, end uint64, reservedVolatileQwords uint64) markers.Descriptor {
	var d markers.Descriptor
	d.StartOfEntry = start
	d.EndOfEntry = end
	d.Action = markers.ActionGenerator
	binary.LittleEndian.PutUint64(d.Meta[:8], reservedVolatileQwords)
	return d
}

func TestGeneratorConfigureNonVolatileRejectsUndersizedReservation(t *testing.T) {
	ws := &workspace.Workspace{File: buildExecutableImage(t, 0x100, 0x90), Manifest: manifest.New()}
	putQword(t, ws, 0x10, IntegrityHash) // one volatile qword elsewhere in the section

	d := generatorDescriptor(0, 0x100, 0) // reserved for 0 volatile qwords, but 1 is needed
	assert.Error(t, Run(ws, []markers.Descriptor{d}))
}

func TestGeneratorPatchNonVolatileBuildsSkipArrayAndEpilogue(t *testing.T) {
	size := 0x100
	ws := &workspace.Workspace{File: buildExecutableImage(t, size, 0x90), Manifest: manifest.New()}

	// One volatile qword at 0x40, outside the generator's own span.
	putQword(t, ws, 0x40, IntegrityHash)

	putQword(t, ws, 0x08, GenAllocSize)
	putQword(t, ws, 0x60, GenVMStart)

	d := generatorDescriptor(0, uint64(size), 1)
	require.NoError(t, Run(ws, []markers.Descriptor{d}))

	allocBytes, err := ws.ReadAt(0x08, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(3*8), binary.LittleEndian.Uint64(allocBytes), "allocation must hold N volatile qwords plus an end marker plus a stop marker")

	vmBytes, err := ws.ReadAt(0x60, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(vmBytes), "VM start placeholder should be patched to the .text section's own base address")

	// required size = (1 volatile qword + 2 markers) * 7 + 7 (LEA epilogue) = 28
	reservedAt := uint64(0x90) // somewhere past the placeholders, still inside an all-0x90 image
	opcodes, err := ws.ReadAt(reservedAt, requiredGeneratorPatchSize(1))
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, len(opcodes)), opcodes, "skip array should have overwritten the NOP reservation")

	instrs, err := decodeMovDWordEntries(opcodes)
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	assert.Equal(t, uint32(0x40), instrs[0].Value, "first entry should skip forward to the volatile qword at 0x40")
	assert.Equal(t, uint32(0xffffffff), instrs[2].Value, "final entry must be the stop marker")
}

// decodeMovDWordEntries decodes a run of MOV DWORD PTR [rbx+ib], id (C7 43
// ib id) instructions, stopping at the first byte that doesn't start one -
// used to inspect the skip array PatchNonVolatile wrote without needing a
// disassembler.
func decodeMovDWordEntries(buf []byte) ([]amd64.MovDWordPtrRBXImm8OffImm32, error) {
	var out []amd64.MovDWordPtrRBXImm8OffImm32
	for i := 0; i+7 <= len(buf) && buf[i] == 0xC7 && buf[i+1] == 0x43; i += 7 {
		out = append(out, amd64.MovDWordPtrRBXImm8OffImm32{
			Offset: int8(buf[i+2]),
			Value:  binary.LittleEndian.Uint32(buf[i+3 : i+7]),
		})
	}
	return out, nil
}
