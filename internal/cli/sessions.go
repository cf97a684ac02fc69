package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maiahq/maia/internal/config"
	"github.com/maiahq/maia/pkg/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *session.Store) error {
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				cmd.Println("No stored sessions")
				return nil
			}
			for _, id := range ids {
				cmd.Println(id)
			}
			return nil
		})
	},
}

var sessionsInfoCmd = &cobra.Command{
	Use:   "info <session-id>",
	Short: "Show message count and expiry for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *session.Store) error {
			info, err := store.Info(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Session:   %s\n", info.SessionID)
			cmd.Printf("Messages:  %d\n", info.MessageCount)
			cmd.Printf("Updated:   %s\n", info.UpdatedAt.Format(time.RFC3339))
			cmd.Printf("Expires in %ds\n", info.ExpiresInSeconds)
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *session.Store) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted session %s\n", args[0])
			return nil
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsInfoCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// withStore connects to the configured durable store for one admin operation
func withStore(cmd *cobra.Command, fn func(context.Context, *session.Store) error) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backend, err := session.NewRedisBackend(ctx, session.RedisConfig{
		URL:            cfg.Sessions.RedisURL,
		ConnectTimeout: time.Duration(cfg.Sessions.ConnectTimeout) * time.Second,
		Logger:         zerolog.Nop(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to session store: %w", err)
	}
	defer backend.Close()
	if !backend.Available() {
		return fmt.Errorf("session store at %s is unreachable", cfg.Sessions.RedisURL)
	}

	store, err := session.NewStore(session.Config{
		Backend: backend,
		TTL:     time.Duration(cfg.Sessions.TTLDays) * 24 * time.Hour,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		return err
	}
	return fn(ctx, store)
}
