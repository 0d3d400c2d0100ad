package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriumgames/packsync"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <scope>",
	Short: "Show which pack a player would get in a world or server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		cat, warnings := cfg.Catalog()
		for _, w := range warnings {
			logger.Debug("packsync: config entry skipped", "error", w)
		}

		scope := ""
		if len(args) > 0 {
			scope = args[0]
		}
		perms, _ := cmd.Flags().GetStringSlice("permission")
		protocol, _ := cmd.Flags().GetInt("protocol")
		override, _ := cmd.Flags().GetString("override")
		stored, _ := cmd.Flags().GetString("stored")

		in := packsync.ResolveInput{
			Player:        packsync.Player{ID: uuid.Nil, Name: "preview"},
			Scope:         scope,
			HasPermission: grants(perms),
			ClientFormat:  -1,
			StoredPack:    stored,
			Now:           time.Now(),
		}
		if protocol >= 0 {
			in.ClientFormat = packsync.PackFormat(protocol)
		}
		if override != "" {
			in.Override = &packsync.Override{Pack: override}
		}

		res := cat.Resolve(in)
		for _, w := range res.Warnings {
			logger.Warn("packsync: skipped pack rule", "error", w)
		}

		out := cmd.OutOrStdout()
		if res.Pack == nil {
			fmt.Fprintln(out, "no pack (client is told to clear)")
			return nil
		}
		fmt.Fprintf(out, "%s from %s", res.Pack.Name(), res.Source)
		if res.Assignment != nil {
			fmt.Fprintf(out, " (%s)", res.Assignment.Name())
		}
		fmt.Fprintf(out, "\n  url=%s\n  hash=%s\n  format=%d\n", res.Pack.URL(), res.Pack.HashHex(), res.Format)
		return nil
	},
}

func grants(perms []string) func(string) bool {
	set := make(map[string]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return func(p string) bool { return set[p] }
}

func init() {
	resolveCmd.Flags().StringSliceP("permission", "p", nil, "Permissions the player holds")
	resolveCmd.Flags().Int("protocol", -1, "The client's protocol version")
	resolveCmd.Flags().String("override", "", "A temporary override pack")
	resolveCmd.Flags().String("stored", "", "The player's stored pack")
	rootCmd.AddCommand(resolveCmd)
}
