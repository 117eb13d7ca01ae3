package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/spf13/cobra"
)

var envelopeFile string

var endpointCmd = &cobra.Command{
	Use:   "endpoint [device-id]",
	Short: "Derive the MQTT endpoint of a device",
	Long: `Derives the MQTT endpoint of a site device, or, with --envelope, of the
device named by a message envelope's attributes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			endpoint *sitemodel.EndpointConfiguration
			err      error
		)

		switch {
		case envelopeFile != "":
			endpoint, err = endpointFromEnvelopeFile(envelopeFile)
		case len(args) == 1:
			if cfg.Site.ProjectID == "" {
				return fmt.Errorf("project id is required (--project or site.project_id)")
			}
			var site *sitemodel.SiteModel
			if site, err = loadSite(); err != nil {
				return err
			}
			endpoint, err = site.EndpointConfig(cfg.Site.ProjectID, args[0])
		default:
			return fmt.Errorf("either a device id or --envelope is required")
		}
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), endpoint)
	},
}

func endpointFromEnvelopeFile(path string) (*sitemodel.EndpointConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	var envelope sitemodel.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse envelope %s: %w", path, err)
	}
	return sitemodel.EndpointConfigFromEnvelope(&envelope)
}

func init() {
	endpointCmd.Flags().StringVar(&envelopeFile, "envelope", "", "JSON file holding envelope attributes")
	rootCmd.AddCommand(endpointCmd)
}
