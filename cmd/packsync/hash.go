package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriumgames/packsync"
	"github.com/oriumgames/packsync/config"
)

var hashCmd = &cobra.Command{
	Use:   "hash [pack]...",
	Short: "Compute pack hashes from their urls and optionally write them back",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		write, _ := cmd.Flags().GetBool("write")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		hasher := packsync.NewHasher()
		defer hasher.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		changed, err := hashPacks(ctx, cfg, hasher, args, func(name, hash string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", hash, name)
		})
		if err != nil {
			logger.Warn("packsync: some packs were not hashed", "error", err)
		}

		if write && changed > 0 {
			if err := cfg.Save(); err != nil {
				return err
			}
			logger.Info("packsync: hashes written", "changed", changed, "file", cfg.Path())
		}
		return nil
	},
}

// hashPacks digests the named packs, or all packs, and stores changed hashes in cfg.
func hashPacks(ctx context.Context, cfg *config.Config, hasher *packsync.Hasher, names []string, report func(name, hash string)) (int, error) {
	if len(names) == 0 {
		for name := range cfg.Packs {
			names = append(names, name)
		}
	}

	var errs []error
	changed := 0
	for _, name := range names {
		key := strings.ToLower(name)
		pc, ok := cfg.Packs[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", packsync.ErrUnknownPack, name))
			continue
		}
		sum, err := hasher.Digest(ctx, pc.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("pack %s: %w", key, err))
			continue
		}
		hash := fmt.Sprintf("%x", sum)
		report(key, hash)
		if !strings.EqualFold(pc.Hash, hash) {
			pc.Hash = hash
			cfg.Packs[key] = pc
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

func init() {
	hashCmd.Flags().Bool("write", false, "Write changed hashes back to the configuration file")
	hashCmd.Flags().Duration("timeout", 2*time.Minute, "Give up on downloads after this long")
	rootCmd.AddCommand(hashCmd)
}
