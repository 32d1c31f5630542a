package main

import (
	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/stripper"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

func newStripBinaryCommand() *cobra.Command {
	var binaryPath, outputPath string

	cmd := &cobra.Command{
		Use:   "strip-binary",
		Short: "Keep only the section holding the entry point, as one segment, and drop section headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := actionLogger("strip-binary")

			ws, err := workspace.Open(binaryPath)
			if err != nil {
				return err
			}

			if err := stripper.Strip(ws, outputPath); err != nil {
				return err
			}

			log.Info().Str("output", outputPath).Msg("wrote stripped binary")
			return nil
		},
	}

	cmd.Flags().StringVarP(&binaryPath, "binary", "b", "", "path to the patched ELF binary")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "path to write the stripped binary to")
	cmd.MarkFlagRequired("binary")
	cmd.MarkFlagRequired("output")
	return cmd
}
