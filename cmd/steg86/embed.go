package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	embedFlags struct {
		targetFlags
		Pass     string
		Key      string
		Msg      string
		File     string
		Workers  int
		DryRun   bool
		Compress bool
		ECC      bool
	}
)

var embedCmd = &cobra.Command{
	Use:   "embed <input> [output]",
	Short: "Embed some data into a binary steganographically",
	Long: `Embeds a message, a file, or standard input into the instruction encodings of a binary.
The steg'd binary is written to [output], or to <input>.steg when no output is given.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := embedFlags.validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid flags")
		}
		if embedFlags.Pass != "" && embedFlags.Key != "" {
			log.Fatal().Msg("passphrase and key-path cannot both be provided")
		}
		if embedFlags.Msg != "" && embedFlags.File != "" {
			log.Fatal().Msg("message and file flags cannot both be provided")
		}
		if embedFlags.Workers < 0 {
			log.Fatal().Msg("number of workers cannot be negative")
		}

		inputPath := args[0]
		outputPath := ""
		if len(args) == 2 {
			outputPath = args[1]
		}

		eArgs := &stego.EmbedArgs{
			TargetArgs:    embedFlags.args(&inputPath),
			OutputPath:    &outputPath,
			Message:       &embedFlags.Msg,
			File:          &embedFlags.File,
			Passphrase:    &embedFlags.Pass,
			PublicKeyPath: &embedFlags.Key,
			Compress:      &embedFlags.Compress,
			ECC:           &embedFlags.ECC,
			DryRun:        &embedFlags.DryRun,
			Verbose:       &verbose,
			NumWorkers:    &embedFlags.Workers,
		}
		if embedFlags.Msg == "" && embedFlags.File == "" {
			eArgs.Stdin = os.Stdin
		}

		result, err := stego.EmbedFile(eArgs)
		var capErr *stego.CapacityExceededError
		if embedFlags.DryRun && result != nil && (err == nil || errors.As(err, &capErr)) {
			fmt.Printf("Payload:   %s (%s envelope)\n", humanize.IBytes(uint64(result.MessageBytes)), humanize.IBytes(uint64(result.EnvelopeBytes)))
			fmt.Printf("Required:  %s bits\n", humanize.Comma(result.RequiredBits))
			fmt.Printf("Capacity:  %s bits\n", humanize.Comma(result.CapacityBits))
			if err != nil {
				fmt.Println("❌ The payload does not fit.")
				os.Exit(1)
			}
			fmt.Println("✅ The payload fits.")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to embed payload")
		}
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedFlags.bind(embedCmd)

	embedCmd.Flags().StringVarP(&embedFlags.Pass, "passphrase", "p", "", "Passphrase to encrypt the payload")
	embedCmd.Flags().StringVarP(&embedFlags.Key, "key-path", "k", "", "Path to .pem file containing recipient's public key")
	embedCmd.Flags().StringVarP(&embedFlags.Msg, "message", "m", "", "Message you want to embed")
	embedCmd.Flags().StringVarP(&embedFlags.File, "file", "f", "", "Path to file to embed. Use '-' for stdin.")
	embedCmd.Flags().IntVarP(&embedFlags.Workers, "workers", "w", 0, "Number of workers to use for concurrency (default: number of CPUs)")
	embedCmd.Flags().BoolVar(&embedFlags.DryRun, "dry-run", false, "Check if the payload fits without writing anything")
	embedCmd.Flags().BoolVarP(&embedFlags.Compress, "compress", "z", false, "Compress data before embedding to save space")
	embedCmd.Flags().BoolVar(&embedFlags.ECC, "ecc", false, "Add Reed-Solomon parity so a damaged payload can be repaired")
}
