package cmd

import (
	"fmt"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/spf13/cobra"
)

var clientIDCmd = &cobra.Command{
	Use:   "clientid",
	Short: "Build or split fully qualified device client ids",
}

var clientIDMakeCmd = &cobra.Command{
	Use:   "make <project> <region> <registry> <device>",
	Short: "Format a client id",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), sitemodel.MakeClientID(args[0], args[1], args[2], args[3]))
		return err
	},
}

var clientIDParseCmd = &cobra.Command{
	Use:   "parse <client-id>",
	Short: "Split a client id into its components",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := sitemodel.ParseClientID(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), info)
	},
}

func init() {
	clientIDCmd.AddCommand(clientIDMakeCmd, clientIDParseCmd)
	rootCmd.AddCommand(clientIDCmd)
}
