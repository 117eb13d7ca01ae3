package cmd

import (
	"context"
	"fmt"

	"example.com/backstage/services/sitemodel/internal/core"
	"example.com/backstage/services/sitemodel/internal/infrastructure"
	"github.com/spf13/cobra"
)

var registrarCmd = &cobra.Command{
	Use:   "registrar",
	Short: "Mirror the site model into the registry database",
	Long: `Upserts every site device into the registry database and publishes an
update notice for each changed device on the site's update topic. Redis and
Service Bus are used when configured; notices that cannot be published are
written to the dead-letter journal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := runRegistrar(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), stats)
	},
}

var registrarStatusCmd = &cobra.Command{
	Use:   "status [device-id]",
	Short: "Show the mirrored registry rows of the site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		site, err := loadSite()
		if err != nil {
			return fmt.Errorf("failed to load site model: %w", err)
		}
		registryID, err := site.RegistryID()
		if err != nil {
			return err
		}

		db, err := infrastructure.NewDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		result, err := registryStatus(ctx, core.NewRepository(db.DB), registryID, args)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func init() {
	registrarCmd.AddCommand(registrarStatusCmd)
	rootCmd.AddCommand(registrarCmd)
}

// registryStatus reads one mirrored device, or every device of registryID.
func registryStatus(ctx context.Context, repo core.Repository, registryID string, args []string) (interface{}, error) {
	if len(args) == 1 {
		device, err := repo.GetDevice(ctx, registryID, args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to get registered device %s: %w", args[0], err)
		}
		return device, nil
	}
	devices, err := repo.ListDevices(ctx, registryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered devices: %w", err)
	}
	return devices, nil
}

func runRegistrar(ctx context.Context) (*core.SyncStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	site, err := loadSite()
	if err != nil {
		return nil, fmt.Errorf("failed to load site model: %w", err)
	}

	logger.Info("Connecting to database...")
	db, err := infrastructure.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	registrarCfg := core.RegistrarConfig{
		Store:          core.NewRepository(db.DB),
		Logger:         logger,
		FingerprintTTL: cfg.Redis.FingerprintTTL,
	}

	if cfg.Redis.Addr != "" {
		logger.Info("Connecting to cache...")
		cache, err := infrastructure.NewCache(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Cache unavailable, every device will be rewritten")
		} else {
			defer cache.Close()
			registrarCfg.Cache = cache
		}
	}

	if cfg.ServiceBus.ConnectionString != "" {
		logger.Info("Connecting to messaging service...")
		messaging, err := infrastructure.NewMessaging(cfg.ServiceBus)
		if err != nil {
			logger.WithError(err).Warn("Messaging service unavailable, continuing without it")
		} else {
			defer messaging.Close()
			registrarCfg.Publisher = messaging
		}

		deadLetter, err := infrastructure.NewDeadLetter(cfg.Storage.DeadLetterPath)
		if err != nil {
			return nil, err
		}
		defer deadLetter.Close()
		registrarCfg.DeadLetter = deadLetter
	}

	registrar, err := core.NewRegistrarService(registrarCfg)
	if err != nil {
		return nil, err
	}
	return registrar.Sync(ctx, site)
}
