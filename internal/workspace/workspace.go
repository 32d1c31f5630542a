// Package workspace combines a parsed ELF image with its patch manifest,
// giving every patcher action the same dependency-checked read/write
// surface instead of poking at pkg/elf.File directly. It is the Go
// counterpart of the original implementation's Elf class, which mixed a
// pwnlib ELF object with the manifest bookkeeping in a single object for
// exactly the same reason: every patch needs both at once.
package workspace

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/WintersDeep/cv-ctf/internal/manifest"
	"github.com/WintersDeep/cv-ctf/pkg/elf"
)

// Workspace is an open binary plus its manifest, ready to be patched.
type Workspace struct {
	Path     string
	File     *elf.File
	Manifest *manifest.Manifest
}

// Open reads elfPath and its manifest sidecar into a Workspace.
func Open(elfPath string) (*Workspace, error) {
	raw, err := os.ReadFile(elfPath)
	if err != nil {
		return nil, errors.Wrapf(err, "workspace: reading %s", elfPath)
	}

	f, err := elf.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "workspace: parsing %s", elfPath)
	}

	m, err := manifest.Load(elfPath)
	if err != nil {
		return nil, err
	}

	return &Workspace{Path: elfPath, File: f, Manifest: m}, nil
}

// ReadAt reads length bytes at virtual address addr.
func (w *Workspace) ReadAt(addr uint64, length int) ([]byte, error) {
	return w.File.ReadAt(addr, length)
}

// WriteAt writes data at virtual address addr, refusing if any byte in the
// range is already claimed by an existing data dependency, and recording
// the write as a new dependency on success.
func (w *Workspace) WriteAt(addr uint64, data []byte, message string) error {
	if collisions := w.Manifest.Collisions(addr, len(data)); len(collisions) > 0 {
		return fmt.Errorf("workspace: write of %d bytes at 0x%016x collides with %d existing dependenc(ies), first: %q",
			len(data), addr, len(collisions), collisions[0].Message)
	}
	if err := w.File.WriteAt(addr, data); err != nil {
		return err
	}
	w.Manifest.RecordDataDependency(addr, len(data), message)
	return nil
}

// RegisterJunk marks addr as available junk space without writing to it.
// Nothing in this module calls it; the protected-string synthesiser does
// not register the junk bytes it emits.
func (w *Workspace) RegisterJunk(addr uint64) error {
	return w.Manifest.RegisterJunk(addr)
}

// AssignJunk claims a random available junk byte and overwrites it with
// value, recording the address as a new dependency.
func (w *Workspace) AssignJunk(value byte, message string) (uint64, error) {
	return w.Manifest.AssignJunk(value, message, func(addr uint64, b byte) error {
		return w.File.WriteAt(addr, []byte{b})
	})
}

// Save writes the patched image back to disk atomically, then saves the
// manifest sidecar alongside it.
func (w *Workspace) Save() error {
	tmp := w.Path + ".tmp"
	if err := os.WriteFile(tmp, w.File.Bytes(), 0755); err != nil {
		return errors.Wrapf(err, "workspace: writing %s", tmp)
	}
	if err := os.Rename(tmp, w.Path); err != nil {
		return errors.Wrapf(err, "workspace: renaming %s to %s", tmp, w.Path)
	}
	return w.Manifest.Save(w.Path)
}
