package cmd

import (
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices of the site model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		site, err := loadSite()
		if err != nil {
			return err
		}
		ids, err := site.DeviceIDs()
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), ids)
	},
}

// deviceView is the resolved credential view of one device.
type deviceView struct {
	DeviceID  string      `json:"device_id" yaml:"device_id"`
	GatewayID string      `json:"gateway_id,omitempty" yaml:"gateway_id,omitempty"`
	KeyDevice string      `json:"key_device" yaml:"key_device"`
	AuthType  string      `json:"auth_type" yaml:"auth_type"`
	KeyFile   string      `json:"key_file" yaml:"key_file"`
	Metadata  interface{} `json:"metadata" yaml:"metadata"`
}

var deviceShowCmd = &cobra.Command{
	Use:   "show <device-id>",
	Short: "Show a device's metadata and resolved key file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		site, err := loadSite()
		if err != nil {
			return err
		}

		deviceID := args[0]
		md, err := site.Metadata(deviceID)
		if err != nil {
			return err
		}
		keyDevice, err := site.KeyDevice(deviceID)
		if err != nil {
			return err
		}
		authType, err := site.AuthType(keyDevice)
		if err != nil {
			return err
		}
		keyFile, err := site.DeviceKeyFile(deviceID)
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), deviceView{
			DeviceID:  deviceID,
			GatewayID: md.GatewayID(),
			KeyDevice: keyDevice,
			AuthType:  string(authType),
			KeyFile:   keyFile,
			Metadata:  md,
		})
	},
}

func init() {
	devicesCmd.AddCommand(deviceShowCmd)
	rootCmd.AddCommand(devicesCmd)
}
