package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/markers"
	"github.com/WintersDeep/cv-ctf/internal/protectstring"
	"github.com/WintersDeep/cv-ctf/internal/workspace"
)

func newProtectStringsCommand() *cobra.Command {
	var binaryPath string

	cmd := &cobra.Command{
		Use:   "protect-strings",
		Short: "Synthesise gadget chains for every .protected-string-entry.* marker",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := actionLogger("protect-strings")

			ws, err := workspace.Open(binaryPath)
			if err != nil {
				return err
			}

			entries, err := findProtectedStrings(ws, log)
			if err != nil {
				return err
			}
			log.Info().Int("count", len(entries)).Msg("located protected-string reservations")

			for _, entry := range entries {
				if err := protectstring.Synthesize(ws, entry); err != nil {
					return fmt.Errorf("protect-strings: synthesising reservation at 0x%016x: %w", entry.Code.VA, err)
				}
				log.Debug().Uint64("reservation", entry.Code.VA).Msg("synthesised constructor")
			}

			return ws.Save()
		},
	}

	cmd.Flags().StringVarP(&binaryPath, "binary", "b", "", "path to the ELF binary to patch")
	cmd.MarkFlagRequired("binary")
	return cmd
}

// findProtectedStrings scans ws for .protected-string-entry.* sections,
// decodes each one's descriptor, and locates the real NOP-run reservation
// near the label address the descriptor recorded. A reservation that
// can't be found is logged and skipped rather than failing the whole run -
// the label address is only approximate, and other patch actions running
// earlier in the pipeline may have already disturbed the bytes around it.
func findProtectedStrings(ws *workspace.Workspace, log zerolog.Logger) ([]protectstring.Entry, error) {
	var out []protectstring.Entry

	for _, section := range ws.File.Sections {
		if !markers.ProtectedStringSectionPattern.MatchString(section.Name) {
			continue
		}

		raw, err := ws.ReadAt(section.Header.Addr, int(section.Header.Size))
		if err != nil {
			return nil, err
		}
		desc, err := markers.ParseProtectedStringDescriptor(raw)
		if err != nil {
			return nil, err
		}

		text, err := ws.File.SectionContaining(desc.ReservationVA)
		if err != nil {
			return nil, err
		}

		windowLen := markers.MaximumAsmPreamble + int(desc.ReservationSize)
		sectionEnd := text.Header.Addr + text.Header.Size
		if desc.ReservationVA+uint64(windowLen) > sectionEnd {
			windowLen = int(sectionEnd - desc.ReservationVA)
		}

		scoped, err := ws.ReadAt(desc.ReservationVA, windowLen)
		if err != nil {
			return nil, err
		}

		reservation, err := markers.LocateReservation(scoped, desc.ReservationVA, int(desc.ReservationSize))
		if err != nil {
			log.Warn().Str("section", section.Name).Uint64("label", desc.ReservationVA).Err(err).Msg("could not locate protected-string reservation, skipping")
			continue
		}

		out = append(out, protectstring.Entry{
			Code:  reservation,
			Value: append([]byte(desc.Plaintext), 0),
		})
	}

	return out, nil
}
