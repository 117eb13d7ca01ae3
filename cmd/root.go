package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"example.com/backstage/services/sitemodel/config"
	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile      string
	outputFormat string
	cfg          *config.Config
	logger       *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sitemodel",
	Short: "Loads UDMI site models and derives device credentials and endpoints.",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load Config
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Initialize Logger
		logger, err = config.NewLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to configure logger: %w", err)
		}
		logger.SetOutput(os.Stderr)
		cfg.Logger = logger

		switch outputFormat {
		case "json", "yaml":
		default:
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config/config.yaml", "config file")
	rootCmd.PersistentFlags().StringP("site", "s", "", "site model directory (overrides site.path)")
	rootCmd.PersistentFlags().StringP("project", "p", "", "cloud project id (overrides site.project_id)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides logging.level)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
}

// loadSite initializes the site model named by the configuration.
func loadSite() (*sitemodel.SiteModel, error) {
	site := sitemodel.New(cfg.Site.Path, logger)
	if err := site.Initialize(); err != nil {
		return nil, err
	}
	return site, nil
}

// printResult writes v to w in the selected output format.
func printResult(w io.Writer, v interface{}) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
