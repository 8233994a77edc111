package main

import (
	"fmt"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeFlags struct {
		targetFlags
		Original string
		Stego    string
	}
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the difference between an original and a steg'd binary",
	Long:  `Compares two binaries channel by channel and reports how many instruction encodings were changed, per redundancy class.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := analyzeFlags.validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid flags")
		}

		aArgs := &stego.AnalyzeArgs{
			OriginalPath: &analyzeFlags.Original,
			StegoPath:    &analyzeFlags.Stego,
			Raw:          &analyzeFlags.Raw,
			Bitness:      &analyzeFlags.Bitness,
		}
		result, err := stego.Analyze(aArgs)
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}

		fmt.Printf("Analysis Complete:\n")
		fmt.Printf("------------------\n")
		fmt.Printf("Code bytes:                     %d\n", result.CodeBytes)
		fmt.Printf("Bytes changed:                  %d\n", result.ChangedBytes)
		fmt.Printf("Channels changed:               %d of %d (%.2f%%)\n", result.ChangedChannels, result.Channels, 100*result.ChangeRatio())
		for _, class := range stego.Classes() {
			fmt.Printf("  %-29s %d\n", class.String()+":", result.ByClass[class])
		}
		if result.OutsideChanges > 0 {
			fmt.Printf("\n⚠️  %d bytes differ outside any channel: the binary was modified by something else.\n", result.OutsideChanges)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeFlags.bind(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFlags.Original, "original", "o", "", "Path to original binary (required)")
	analyzeCmd.MarkFlagRequired("original")
	analyzeCmd.Flags().StringVarP(&analyzeFlags.Stego, "stego", "s", "", "Path to steg'd binary (required)")
	analyzeCmd.MarkFlagRequired("stego")
}
