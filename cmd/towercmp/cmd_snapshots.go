package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/towercmp/internal/snapshot"
)

var snapshotsDB string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored resource snapshots",
	Example: `  towercmp snapshots --snapshot-db towercmp.db
  towercmp snapshots -c towercmp.toml`,
	RunE: runSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)

	snapshotsCmd.Flags().StringVar(&snapshotsDB, "snapshot-db", "", "Snapshot database path")
}

func runSnapshots(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	path := cfg.Snapshot.Path
	if cmd.Flags().Changed("snapshot-db") {
		path = snapshotsDB
	}
	if path == "" {
		return errors.New("no snapshot database: set --snapshot-db or snapshot.path")
	}

	store, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries := store.Entries()
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No snapshots stored.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REVISION\tSOURCE\tTYPE\tCOUNT\tSAVED")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", e.Revision, e.Source, e.Type, e.Count, e.SavedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
