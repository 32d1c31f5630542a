package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WintersDeep/cv-ctf/internal/prng"
)

func newGenerateMTSequenceCommand() *cobra.Command {
	var count, skip int
	var encode string

	cmd := &cobra.Command{
		Use:   "generate-mt-sequence <seed>",
		Short: "Generates and prints out a mersenne twister sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed64, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("generate-mt-sequence: invalid seed %q: %w", args[0], err)
			}
			seed := uint32(seed64)

			log := actionLogger("generate-mt-sequence")
			log.Info().Int("count", count).Int("skip", skip).Uint32("seed", seed).
				Msg("generating mersenne twister sequence")

			values := prng.Generate(seed, skip, count)
			printMTSequence(seed, skip, encode, values)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 100, "the number of values to emit")
	cmd.Flags().IntVarP(&skip, "skip", "s", 0, "the number of values in the sequence to jump over")
	cmd.Flags().StringVarP(&encode, "encode", "e", "one-per-line-hex",
		"one-per-line-dec|one-per-line-hex|c-char-array-le|c-char-array-be|c-uint-array")
	return cmd
}

// printMTSequence mirrors MtSequenceCliEncoders: the one-per-line encoders
// just print the values, the C array encoders also print a comment banner
// naming the seed and, when values were skipped, a note saying so.
func printMTSequence(seed uint32, skip int, encode string, values []uint32) {
	name := fmt.Sprintf("mt_seed_%08x_values", seed)

	switch encode {
	case "one-per-line-dec":
		fmt.Print(prng.OnePerLineDec(values))
	case "one-per-line-hex":
		fmt.Print(prng.OnePerLineHex(values))
	case "c-uint-array":
		fmt.Printf("/// mersenne-twister sequence for seed %d\n", seed)
		if skip != 0 {
			fmt.Printf("//  @note: %d initial values skipped/discarded.\n", skip)
		}
		fmt.Print(prng.CUintArray(name, values))
	case "c-char-array-le":
		fmt.Printf("/// mersenne-twister sequence for seed %d (uint32, little-endian encoded)\n", seed)
		if skip != 0 {
			fmt.Printf("//  @note: %d initial values skipped/discarded.\n", skip)
		}
		fmt.Print(prng.CCharArrayLE(name, values))
	case "c-char-array-be":
		fmt.Printf("/// mersenne-twister sequence for seed %d (uint32, big-endian encoded)\n", seed)
		if skip != 0 {
			fmt.Printf("//  @note: %d initial values skipped/discarded.\n", skip)
		}
		fmt.Print(prng.CCharArrayBE(name, values))
	default:
		fmt.Print(prng.OnePerLineHex(values))
	}
}
