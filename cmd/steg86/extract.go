package main

import (
	"os"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	extractFlags struct {
		targetFlags
		Pass string
		Key  string
		Out  string
	}
)

var extractCmd = &cobra.Command{
	Use:   "extract <input>",
	Short: "Extract the hidden data from a binary",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := extractFlags.validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid flags")
		}
		if extractFlags.Pass != "" && extractFlags.Key != "" {
			log.Fatal().Msg("passphrase and key-path cannot both be provided")
		}

		inputPath := args[0]
		xArgs := &stego.ExtractArgs{
			TargetArgs:     extractFlags.args(&inputPath),
			Passphrase:     &extractFlags.Pass,
			PrivateKeyPath: &extractFlags.Key,
			Verbose:        &verbose,
			OutputPath:     &extractFlags.Out,
			Writer:         os.Stdout,
		}

		if _, err := stego.ExtractFile(xArgs); err != nil {
			log.Fatal().Err(err).Msg("Failed to extract payload")
		}
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractFlags.bind(extractCmd)

	extractCmd.Flags().StringVarP(&extractFlags.Pass, "passphrase", "p", "", "Passphrase to decrypt the payload")
	extractCmd.Flags().StringVarP(&extractFlags.Key, "key-path", "k", "", "Path to .pem file containing your private key")
	extractCmd.Flags().StringVarP(&extractFlags.Out, "output", "o", "", "Output path for the extracted payload (default: stdout)")
}
