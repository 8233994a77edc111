package main

import (
	"path/filepath"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	kBits int
	kOut  string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate an RSA key pair for embedding to a recipient",
	Long: `Writes private.pem and public.pem to the output directory.
Embed with --key-path public.pem, extract with --key-path private.pem.`,
	Run: func(cmd *cobra.Command, args []string) {
		if kBits < 2048 {
			log.Fatal().Int("bits", kBits).Msg("key length must be at least 2048 bits")
		}
		log.Info().Int("bits", kBits).Str("output", kOut).Msg("Generating RSA keys...")
		if err := stego.GenerateRSAKeys(kBits, kOut); err != nil {
			log.Fatal().Err(err).Msg("Error generating keys")
		}
		log.Info().
			Str("private", filepath.Join(kOut, "private.pem")).
			Str("public", filepath.Join(kOut, "public.pem")).
			Msg("Keys generated successfully")
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.Flags().IntVarP(&kBits, "bits", "n", 2048, "Number of bits for key length")
	keysCmd.Flags().StringVarP(&kOut, "output", "o", ".", "Path to directory to save keys")
}
