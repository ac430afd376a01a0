package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/edumarques81/streamly-backend/internal/domain/recent"
	"github.com/edumarques81/streamly-backend/internal/infra/cache"
)

func init() {
	rootCmd.AddCommand(recentCmd)
	recentCmd.AddCommand(recentListCmd, recentClearCmd)
	recentListCmd.Flags().IntP("limit", "n", recent.DefaultListLimit, "Number of entries to show")
	recentListCmd.Flags().Bool("json", false, "Print entries as JSON")
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Inspect or clear the recently played list",
}

var recentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently played media, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, done, err := openRecent(cmd)
		if err != nil {
			return err
		}
		defer done()

		items, err := svc.List(lo.Must(cmd.Flags().GetInt("limit")))
		if err != nil {
			return err
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tKIND\tPLAYS\tLAST PLAYED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", item.SortTitle(), item.Kind, item.PlayCount, item.LastPlayed.Format(time.DateTime))
		}
		return w.Flush()
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every recently played entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, done, err := openRecent(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := svc.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Recently played cleared")
		return nil
	},
}

// openRecent opens the cache and returns a recent service over it.
func openRecent(cmd *cobra.Command) (*recent.Service, func(), error) {
	cfg, logCloser, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := openCache(cfg.DatabasePath())
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	svc := recent.NewService(cache.NewDAO(db), recent.WithLimit(cfg.RecentLimit))
	return svc, func() {
		db.Close()
		logCloser.Close()
	}, nil
}
