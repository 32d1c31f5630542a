// Package stripper writes the final, minimal single-segment ELF: the
// entry-containing section's raw bytes with no section table and a
// deliberately mangled header, so a disassembler opening the final binary
// has none of the section-name breadcrumbs that made the patched regions
// easy to spot during development.
package stripper

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/WintersDeep/cv-ctf/internal/workspace"
	"github.com/WintersDeep/cv-ctf/pkg/elf"
)

// Strip reads the section containing ws.File's entry point, and writes it
// alone as a single PT_LOAD segment at outputPath: p_offset=0, so the
// payload follows directly after the program header with no page padding,
// and the new entry point is rewritten relative to that segment's vaddr.
func Strip(ws *workspace.Workspace, outputPath string) error {
	entry := ws.File.Header.Entry

	section, err := ws.File.SectionContaining(entry)
	if err != nil {
		return errors.Wrapf(err, "stripper: locating entry section")
	}

	segment, err := segmentContaining(ws.File.Phdrs, entry)
	if err != nil {
		return err
	}

	payload, err := ws.ReadAt(section.Header.Addr, int(section.Header.Size))
	if err != nil {
		return err
	}

	img := elf.StrippedImage{
		Payload: payload,
		VAddr:   segment.VAddr,
		Entry:   segment.VAddr + elf.ELF64HeaderSize + elf.ELF64PhdrSize + (entry - section.Header.Addr),
		Flags:   segment.Flags,
	}
	stripped := img.Build()

	if err := os.WriteFile(outputPath, stripped, 0755); err != nil {
		return errors.Wrapf(err, "stripper: writing %s", outputPath)
	}

	return preservePermissions(ws.Path, outputPath)
}

// segmentContaining returns the PT_LOAD segment whose [VAddr, VAddr+MemSz)
// range contains address.
func segmentContaining(phdrs []elf.Phdr64, address uint64) (elf.Phdr64, error) {
	for _, p := range phdrs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if address >= p.VAddr && address < p.VAddr+p.MemSz {
			return p, nil
		}
	}
	return elf.Phdr64{}, fmt.Errorf("stripper: no PT_LOAD segment contains entry point 0x%016x", address)
}

// preservePermissions copies srcPath's rwx permission bits onto dstPath, so a
// stripped binary keeps the same read/write/execute bits the original had
// rather than whatever os.WriteFile's mode argument happened to pick. The
// setuid, setgid and sticky bits are not copied.
func preservePermissions(srcPath, dstPath string) error {
	var st unix.Stat_t
	if err := unix.Stat(srcPath, &st); err != nil {
		return errors.Wrapf(err, "stripper: stat %s", srcPath)
	}
	return os.Chmod(dstPath, os.FileMode(st.Mode&0777))
}
