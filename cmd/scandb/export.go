package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scandb/scandb/internal/config"
	"github.com/scandb/scandb/internal/share"
	"github.com/scandb/scandb/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "store",
	Short:   "Export the database file",
	Long: `Hand the database file to the configured share target.

Targets:
  dir   copy to the export directory as barcodes-YYYYMMDD-HHMMSS.db
  open  open the file with the system's default application`,
	Run: func(cmd *cobra.Command, args []string) {
		dest, err := exportStore(cmd.Context(), cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.RenderFail("✗"), exportMessage(err), err)
			os.Exit(1)
		}
		fmt.Printf("%s Database exported to %s\n", ui.RenderPass("✓"), dest)
	},
}

func init() {
	exportCmd.Flags().String("target", config.TargetDir, "Share target: dir or open")
	exportCmd.Flags().String("dir", "", "Export directory for the dir target")
	bindFlag(exportCmd.Flags(), "target", config.KeyExportTarget)
	bindFlag(exportCmd.Flags(), "dir", config.KeyExportDir)

	rootCmd.AddCommand(exportCmd)
}

// exportStore checkpoints the store and shares its file.
func exportStore(ctx context.Context, c config.Config) (string, error) {
	sharer := share.NewSharer(newTarget(c), logs.For("share"))
	if !sharer.Available() {
		return "", share.ErrUnavailable
	}

	if _, err := os.Stat(c.DBPath()); err != nil {
		return "", fmt.Errorf("%w: %s", share.ErrFileNotFound, c.DBPath())
	}

	st, err := openStore(ctx)
	if err != nil {
		return "", err
	}
	if err := st.Checkpoint(ctx); err != nil {
		logs.For("store").Printf("Warning: %v", err)
	}
	if err := st.Close(); err != nil {
		return "", err
	}

	return sharer.Share(ctx, c.DBPath())
}

func exportMessage(err error) string {
	switch {
	case errors.Is(err, share.ErrUnavailable):
		return "Sharing not available"
	case errors.Is(err, share.ErrFileNotFound):
		return "Database file not found"
	default:
		return "Export failed"
	}
}
