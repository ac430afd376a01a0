package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/edumarques81/streamly-backend/internal/domain/library"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/infra/cache"
	"github.com/edumarques81/streamly-backend/internal/infra/probe"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("json", false, "Print every item as JSON")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the media roots once and update the cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logCloser, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		db, err := openCache(cfg.DatabasePath())
		if err != nil {
			return err
		}
		defer db.Close()

		scanner := library.NewScanner(cfg.MediaRoots, probe.New(cfg.FFprobePath), library.WithCache(cache.NewDAO(db)))
		items, err := scanner.Scan(cmd.Context())
		if err != nil {
			return err
		}
		if err := db.MarkScanComplete(); err != nil {
			return err
		}

		if lo.Must(cmd.Flags().GetBool("json")) {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		counts := lo.CountValuesBy(items, func(item media.Item) media.Kind { return item.Kind })
		folders := lo.Uniq(lo.Map(items, func(item media.Item, _ int) string { return item.FolderID }))
		fmt.Fprintf(cmd.OutOrStdout(), "%d items in %d folders (%d video, %d audio)\n",
			len(items), len(folders), counts[media.KindVideo], counts[media.KindAudio])
		return nil
	},
}

// openCache opens the cache database.
func openCache(path string) (*cache.DB, error) {
	db := cache.NewDB(path)
	if err := db.Open(); err != nil {
		return nil, err
	}
	return db, nil
}
