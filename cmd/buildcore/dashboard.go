package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"buildcore/internal/dashboard"
	"buildcore/pkg/client"
	"buildcore/pkg/domain"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	var (
		baseURL string
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the admin dashboard counts of a running server",
		Long: `Fetch every dashboard list from a running server concurrently and print
the counts. If any fetch fails the failing lists are shown and the command
exits non-zero; a failed list is never shown as 0.

Example:
  buildcore dashboard --url http://localhost:8080 --token $BUILDCORE_ADMIN_TOKEN`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.New(baseURL, client.WithToken(token))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			summary, err := dashboard.NewAggregator(c).Collect(ctx)
			return printDashboard(cmd.OutOrStdout(), summary, err)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "admin bearer token")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "overall timeout")
	return cmd
}

func printDashboard(w io.Writer, summary dashboard.Summary, err error) error {
	var agg domain.AggregateFetchError
	if errors.As(err, &agg) {
		fmt.Fprintln(w, color.New(color.FgRed, color.Bold).Sprint("Dashboard unavailable"))
		for _, kind := range agg.Kinds() {
			fmt.Fprintf(w, "  %-14s %s\n", kind.Plural(), color.New(color.FgRed).Sprintf("FAILED (%v)", agg.Failures[kind]))
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, color.New(color.Bold).Sprint("Dashboard"))
	for _, t := range summary.Tallies {
		fmt.Fprintf(w, "  %-14s %s\n", t.Kind.Plural(), color.New(color.FgGreen).Sprint(t.Count))
	}
	return nil
}
