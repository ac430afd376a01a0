package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/edumarques81/streamly-backend/internal/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("short", "s", false, "Print only the version number")
	versionCmd.Flags().Bool("json", false, "Print build metadata as JSON")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build metadata",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.GetInfo()
		out := cmd.OutOrStdout()
		switch {
		case lo.Must(cmd.Flags().GetBool("short")):
			_, err := fmt.Fprintln(out, info.Version)
			return err
		case lo.Must(cmd.Flags().GetBool("json")):
			return json.NewEncoder(out).Encode(info)
		}
		_, err := fmt.Fprintf(out, "%s\n  Go: %s\n", info.String(), info.GoVersion)
		return err
	},
}
