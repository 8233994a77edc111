package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/steg86/pkg/stego"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var profileFlags targetFlags

var profileCmd = &cobra.Command{
	Use:   "profile <input>",
	Short: "Profile a binary for steganographic storage capacity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := profileFlags.validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid flags")
		}
		inputPath := args[0]

		target := profileFlags.args(&inputPath)
		profile, err := stego.ProfileFile(&target)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to profile binary")
		}

		fmt.Printf("Instructions:  %s\n", humanize.Comma(int64(profile.Instructions)))
		fmt.Printf("Channels:      %s\n", humanize.Comma(int64(profile.Channels)))
		fmt.Printf("Capacity:      %s bits\n", humanize.Comma(int64(profile.Bits)))
		fmt.Printf("Max payload:   %s (%d bytes, after the %d-bit header)\n\n",
			humanize.IBytes(uint64(profile.PayloadBytes())), profile.PayloadBytes(), stego.HeaderBits)

		wtr := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(wtr, "Class\tChannels\tBits")
		fmt.Fprintln(wtr, "-----\t--------\t----")
		for _, class := range stego.Classes() {
			n := profile.ByClass[class]
			fmt.Fprintf(wtr, "%s\t%d\t%d\n", class, n, n)
		}
		wtr.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileFlags.bind(profileCmd)
}
