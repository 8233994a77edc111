package main

import (
	"errors"
	"os"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Global flags
var (
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "steg86",
	Short: "Hide data in x86 binaries by re-encoding their instructions",
	Long: `steg86 stores data in the redundant encodings of x86 and AMD64 instructions.
The output binary has the same size and behaves exactly like the input.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// targetFlags are the flags every command that reads a binary shares.
type targetFlags struct {
	Raw     bool
	Bitness int
}

func (f *targetFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.Raw, "raw", "r", false, "Treat the input as a raw instruction stream (requires --bitness)")
	cmd.Flags().IntVarP(&f.Bitness, "bitness", "b", 0, "Bitness of the raw input: 16, 32 or 64 (required with --raw)")
}

// validate rejects flag combinations that cannot be honored. A raw input
// without --bitness is left to the container parser, which refuses it.
func (f *targetFlags) validate() error {
	if f.Bitness != 0 && !f.Raw {
		return errors.New("--bitness can only be used together with --raw")
	}
	return nil
}

func (f *targetFlags) args(path *string) stego.TargetArgs {
	return stego.TargetArgs{InputPath: path, Raw: &f.Raw, Bitness: &f.Bitness}
}
