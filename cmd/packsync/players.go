package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriumgames/packsync/store"
)

// playerStore is a stored-pack store that can be listed.
type playerStore interface {
	All(ctx context.Context) (map[uuid.UUID]string, error)
	SetStoredPack(ctx context.Context, id uuid.UUID, pack string) error
}

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List the packs players picked with usepack",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(slog.LevelInfo)
		s, closeStore, err := openStore(cmd, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		entries, err := s.All(cmd.Context())
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(entries))
		for id := range entries {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

		out := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintf(out, "%s  %s\n", id, entries[id])
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <players.yml> <badger dir>",
	Short: "Copy stored packs from a players file into a badger store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(slog.LevelInfo)
		from, err := store.OpenYAML(args[0])
		if err != nil {
			return err
		}
		to, err := store.OpenBadger(args[1], logger)
		if err != nil {
			return err
		}
		defer to.Close()

		n, err := migrate(cmd.Context(), from, to)
		if err != nil {
			return err
		}
		logger.Info("packsync: players migrated", "count", n, "to", args[1])
		return nil
	},
}

// openStore opens the badger store named by --db, or the players file named by --file.
func openStore(cmd *cobra.Command, logger *slog.Logger) (playerStore, func(), error) {
	if dir, _ := cmd.Flags().GetString("db"); dir != "" {
		b, err := store.OpenBadger(dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	}
	file, _ := cmd.Flags().GetString("file")
	y, err := store.OpenYAML(file)
	if err != nil {
		return nil, nil, err
	}
	return y, func() {}, nil
}

// migrate copies every entry of from into to and returns the number copied.
func migrate(ctx context.Context, from, to playerStore) (int, error) {
	entries, err := from.All(ctx)
	if err != nil {
		return 0, err
	}
	for id, pack := range entries {
		if err := to.SetStoredPack(ctx, id, pack); err != nil {
			return 0, fmt.Errorf("migrate %s: %w", id, err)
		}
	}
	return len(entries), nil
}

func init() {
	playersCmd.Flags().String("file", "players.yml", "The players file")
	playersCmd.Flags().String("db", "", "A badger store directory, used instead of the players file")
	playersCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(playersCmd)
}
