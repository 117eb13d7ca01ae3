// services/sitemodel/cmd/republish.go
package cmd

import (
	"context"
	"fmt"

	"example.com/backstage/services/sitemodel/internal/core"
	"example.com/backstage/services/sitemodel/internal/infrastructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	republishDryRun      bool
	republishConcurrency int
	republishMaxRetries  int
)

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Republish dead-lettered update notices",
	Long: `Replays the dead-letter journal to Service Bus. Messages that fail again
stay in the journal with their retry count raised.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepublish(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(republishCmd)

	republishCmd.Flags().BoolVar(&republishDryRun, "dry-run", false, "Show what would be republished without actually sending")
	republishCmd.Flags().IntVar(&republishConcurrency, "concurrency", 10, "Number of concurrent workers")
	republishCmd.Flags().IntVar(&republishMaxRetries, "max-retries", 0, "Drop messages that failed this many times (0 keeps them)")
}

func runRepublish(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("Starting dead-letter republish...")

	deadLetter, err := infrastructure.NewDeadLetter(cfg.Storage.DeadLetterPath)
	if err != nil {
		return err
	}
	defer deadLetter.Close()

	var publisher core.UpdatePublisher
	if !republishDryRun {
		messaging, err := infrastructure.NewMessaging(cfg.ServiceBus)
		if err != nil {
			return fmt.Errorf("messaging connection failed: %w", err)
		}
		defer messaging.Close()
		publisher = messaging
	}

	republisher := core.NewRepublisher(deadLetter, publisher, logger,
		republishConcurrency, republishMaxRetries, republishDryRun)

	stats, err := republisher.Republish(ctx)
	if err != nil {
		return fmt.Errorf("republish failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"total_processed": stats.TotalProcessed,
		"successful":      stats.Successful,
		"failed":          stats.Failed,
		"dropped":         stats.Dropped,
		"dry_run":         republishDryRun,
	}).Info("Republish completed")

	if stats.Failed > 0 {
		logger.Warnf("Failed to republish %d messages", stats.Failed)
	}
	return nil
}
