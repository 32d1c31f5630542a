// Command ebp patches x86-64 self-protecting CTF binaries: it fills in
// protected-string gadgets and integrity hashes the compiler left as
// placeholders, strips the result down to a single loadable segment, and
// emits the headers a 32-bit launcher stub needs to unpack it.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ebp",
		Short:         "Patch and package a self-protecting ELF binary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newProtectStringsCommand(),
		newHashPatchCommand(),
		newStripBinaryCommand(),
		newWritePayloadHeaderCommand(),
		newGenerateHiddenStringCommand(),
		newGenerateMTSequenceCommand(),
	)
	return root
}

// actionLogger returns a child logger tagged with the action name, the Go
// equivalent of the original implementation's per-action
// logging.getLogger(f"ebp.action.{cmd}") pattern.
func actionLogger(action string) zerolog.Logger {
	return log.With().Str("action", action).Logger()
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("ebp: command failed")
		os.Exit(1)
	}
}
