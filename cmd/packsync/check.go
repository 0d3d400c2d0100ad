package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and list skipped entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		cat, warnings := cfg.Catalog()
		for _, w := range warnings {
			logger.Warn("packsync: config entry skipped", "error", w)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d packs, %d assignments\n", cat.Packs.Len(), len(cat.Assignments.Assignments()))
		for _, p := range cat.Packs.Packs() {
			marker := ""
			if p.IsEmpty(cat.Packs) {
				marker = " (empty)"
			}
			fmt.Fprintf(out, "  %s%s  format=%d  hash=%s\n", p.Name(), marker, p.Format(), p.HashHex())
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if strict && len(warnings) > 0 {
			return fmt.Errorf("%d configuration problems", len(warnings))
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("strict", false, "Fail when any entry was skipped")
	rootCmd.AddCommand(checkCmd)
}
