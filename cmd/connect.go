package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/backstage/services/sitemodel/internal/infrastructure"
	"github.com/spf13/cobra"
)

var (
	connectDeviceID string
	connectState    string
	connectDuration time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open an MQTT session as a site device",
	Long: `Connects to the device's endpoint with a JWT signed by its resolved key,
logs received config and optionally reports a state document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&connectDeviceID, "device", "d", "", "device id to connect as")
	connectCmd.Flags().StringVar(&connectState, "state", "", "JSON state document to publish after connecting")
	connectCmd.Flags().DurationVar(&connectDuration, "duration", 0, "disconnect after this long (0 waits for a signal)")
	_ = connectCmd.MarkFlagRequired("device")
}

func runConnect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Site.ProjectID == "" {
		return fmt.Errorf("project id is required (--project or site.project_id)")
	}

	site, err := loadSite()
	if err != nil {
		return fmt.Errorf("failed to load site model: %w", err)
	}

	endpoint, err := site.EndpointConfig(cfg.Site.ProjectID, connectDeviceID)
	if err != nil {
		return err
	}
	keyDevice, err := site.KeyDevice(connectDeviceID)
	if err != nil {
		return err
	}
	authType, err := site.AuthType(keyDevice)
	if err != nil {
		return err
	}
	keyFile, err := site.DeviceKeyFile(connectDeviceID)
	if err != nil {
		return err
	}

	client, err := infrastructure.NewDeviceClient(infrastructure.DeviceConnectionConfig{
		Endpoint:          endpoint,
		DeviceID:          connectDeviceID,
		ProjectID:         cfg.Site.ProjectID,
		KeyFile:           keyFile,
		AuthType:          authType,
		Port:              cfg.MQTT.Port,
		QoS:               cfg.MQTT.QoS,
		JWTTTL:            cfg.MQTT.JWTTTL,
		KeepAlive:         cfg.MQTT.KeepAlive,
		ConnectTimeout:    cfg.MQTT.ConnectTimeout,
		MaxReconnectDelay: cfg.MQTT.MaxReconnectDelay,
	}, logger)
	if err != nil {
		return err
	}
	client.SetConfigHandler(func(payload []byte) {
		logger.WithField("device_id", connectDeviceID).Infof("Config: %s", payload)
	})

	if err := client.Start(); err != nil {
		return err
	}
	defer client.Stop()

	if connectState != "" {
		if err := client.PublishState([]byte(connectState)); err != nil {
			return err
		}
		logger.Info("Published state")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if connectDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectDuration)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}
