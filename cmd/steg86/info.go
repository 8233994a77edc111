package main

import (
	"fmt"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoFlags targetFlags

var infoCmd = &cobra.Command{
	Use:   "info <input>",
	Short: "Inspect a steg'd binary and display its payload header",
	Long: `Extracts the hidden envelope without decrypting it and reports its version, flags and size.
When the payload carries Reed-Solomon parity, its integrity is verified as well.`,
	Args: cobra.ExactArgs(1), // Requires exactly one argument: the binary path
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := infoFlags.validate(); err != nil {
			return err
		}
		inputPath := args[0]

		target := infoFlags.args(&inputPath)
		info, err := stego.GetInfo(&target)
		if err != nil {
			return fmt.Errorf("failed to get info from %s: %w", inputPath, err)
		}

		fmt.Println("Payload Header Information:")
		fmt.Println("---------------------------")
		fmt.Printf("Version:          %d\n", info.Version)
		fmt.Printf("Compressed:       %t\n", info.IsCompressed)
		fmt.Printf("Encrypted:        %t\n", info.IsEncrypted)
		if info.IsEncrypted {
			fmt.Printf("Recipient Key:    %t\n", info.UsesRSA)
		}
		fmt.Printf("Reed-Solomon:     %t\n", info.HasECC)
		if info.HasECC {
			fmt.Printf("Intact:           %t\n", info.Intact)
		}
		fmt.Printf("Payload Size:     %s\n", humanize.IBytes(uint64(info.DataSize)))
		fmt.Printf("Capacity:         %s bits\n", humanize.Comma(int64(info.CapacityBits)))
		for _, class := range stego.Classes() {
			fmt.Printf("  %-15s %d channels\n", class.String()+":", info.Profile.ByClass[class])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoFlags.bind(infoCmd)
}
