package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/launcher"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

func newWritePayloadHeaderCommand() *cobra.Command {
	var binaryPath, outputPath string

	cmd := &cobra.Command{
		Use:   "write-payload-header",
		Short: "Render a fizz-buzz obfuscated payload header for the launcher stub",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := actionLogger("write-payload-header")

			ws, err := workspace.Open(binaryPath)
			if err != nil {
				return err
			}

			header, err := launcher.BuildPayload(ws, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return err
			}

			if err := os.WriteFile(outputPath, []byte(header), 0644); err != nil {
				return err
			}

			log.Info().Str("output", outputPath).Msg("wrote payload header")
			return nil
		},
	}

	cmd.Flags().StringVarP(&binaryPath, "binary", "b", "", "path to the patched ELF binary")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "payload.h", "path to write the generated header to")
	cmd.MarkFlagRequired("binary")
	return cmd
}
