package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "buildcore",
		Short: "Content backend for a construction company website",
		Long: `buildcore serves the services, projects, team and testimonials shown on
the public site, accepts contact messages, and exposes an admin API for
managing that content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(serveCmd(opts))
	cmd.AddCommand(seedCmd(opts))
	cmd.AddCommand(dashboardCmd())
	return cmd
}
