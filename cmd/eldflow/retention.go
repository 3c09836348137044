package main

import (
	"context"
	"fmt"

	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/retention"
	"github.com/spf13/cobra"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run the retention job",
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Delete expired sessions and old assistant messages now",
	RunE:  runRetention,
}

func init() {
	retentionCmd.AddCommand(retentionRunCmd)
	rootCmd.AddCommand(retentionCmd)
}

func runRetention(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	store, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	scheduler, err := retention.NewScheduler(store, cfg.Retention, clock.Real{}, logger)
	if err != nil {
		return err
	}

	result, err := scheduler.RunOnce(context.Background())
	if err != nil {
		return fmt.Errorf("retention failed: %w", err)
	}

	fmt.Printf("Deleted %d expired session(s) and %d message(s)\n", result.Sessions, result.Messages)
	return nil
}
