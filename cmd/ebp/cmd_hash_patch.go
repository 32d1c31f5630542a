package main

import (
	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/integrity"
	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

func newHashPatchCommand() *cobra.Command {
	var binaryPath string

	cmd := &cobra.Command{
		Use:   "hash-patch",
		Short: "Fill in every .hash-patch.* integrity chain placeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := actionLogger("hash-patch")

			ws, err := workspace.Open(binaryPath)
			if err != nil {
				return err
			}

			descs, err := findHashPatchDescriptors(ws)
			if err != nil {
				return err
			}
			log.Info().Int("count", len(descs)).Msg("located hash-patch sections")

			if err := integrity.Run(ws, descs); err != nil {
				return err
			}

			return ws.Save()
		},
	}

	cmd.Flags().StringVarP(&binaryPath, "binary", "b", "", "path to the ELF binary to patch")
	cmd.MarkFlagRequired("binary")
	return cmd
}

func findHashPatchDescriptors(ws *workspace.Workspace) ([]markers.Descriptor, error) {
	var out []markers.Descriptor
	for _, section := range ws.File.Sections {
		if !markers.SectionNamePattern.MatchString(section.Name) {
			continue
		}
		raw, err := ws.ReadAt(section.Header.Addr, int(section.Header.Size))
		if err != nil {
			return nil, err
		}
		d, err := markers.ParseDescriptor(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
