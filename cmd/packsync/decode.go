package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oriumgames/packsync"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a captured " + packsync.ChannelName + " plugin message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(args[0]))
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		msg, err := packsync.DecodeMessage(data)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "op=%s player=%s\n", msg.Op, msg.Player)
		if msg.Op == packsync.OpPackChange {
			fmt.Fprintf(out, "pack=%s url=%s hash=%s\n", msg.Pack, msg.URL, msg.Hash)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
