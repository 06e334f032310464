package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scandb/scandb/internal/store"
	"github.com/scandb/scandb/internal/ui"
)

var clearCmd = &cobra.Command{
	Use:     "clear",
	GroupID: "store",
	Short:   "Delete every stored code",
	Long: `Delete every row from the code store. The table is kept.

Asks for confirmation on a terminal unless --yes is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		runBulk(cmd.Context(), yes, "Delete all stored codes?", "clear", (*store.Store).DeleteAll)
	},
}

var resetCmd = &cobra.Command{
	Use:     "reset",
	Aliases: []string{"delete-db"},
	GroupID: "store",
	Short:   "Drop and recreate the code table",
	Long: `Drop the code table and create it again. The outcome is the same as
'scandb clear'; the table's storage is rebuilt instead of emptied row by row.

Asks for confirmation on a terminal unless --yes is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		runBulk(cmd.Context(), yes, "Drop and recreate the code table?", "reset", (*store.Store).Recreate)
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "store",
	Short:   "Show code store status",
	Long: `Display the location, size, code count and modification time of the
code store.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := printStatus(cmd.Context(), os.Stdout, cfg.DBPath()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "store",
	Short:   "List stored codes",
	Long:    `List stored codes in the order they were scanned.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		codes, err := st.List(cmd.Context(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing codes: %v\n", err)
			os.Exit(1)
		}
		total, err := st.Count(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting codes: %v\n", err)
			os.Exit(1)
		}

		if err := writeCodes(os.Stdout, format, codeList{Path: st.Path(), Count: total, Codes: codes}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	clearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	resetCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	listCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of codes (0 for all)")

	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
}

// runBulk confirms and applies a bulk store operation.
func runBulk(ctx context.Context, yes bool, question, name string, op func(*store.Store, context.Context) error) {
	if !yes {
		if !ui.IsTerminal(os.Stdin) {
			fmt.Fprintf(os.Stderr, "Error: refusing to %s without a terminal; pass --yes\n", name)
			os.Exit(1)
		}
		ok, err := ui.Confirm(question, cfg.DBPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("Aborted")
			return
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	count, err := bulk(ctx, st, op)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("%s Store %s, %s\n", ui.RenderPass("✓"), name, ui.CountLabel(count))
}

// bulk applies op and returns the count read back from the store.
func bulk(ctx context.Context, st *store.Store, op func(*store.Store, context.Context) error) (int, error) {
	if err := op(st, ctx); err != nil {
		return 0, err
	}
	return st.Count(ctx)
}

// printStatus writes the store summary for path to w.
func printStatus(ctx context.Context, w io.Writer, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(w, "\n%s Code store not initialized\n", ui.RenderWarn("⚠"))
		fmt.Fprintf(w, "   Run 'scandb scan' to create it\n\n")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check database: %w", err)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := st.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s Code Store Status\n\n", ui.RenderAccent("📊"))
	fmt.Fprintf(w, "Location: %s\n", path)
	fmt.Fprintf(w, "Size: %s\n", formatSize(info.Size()))
	fmt.Fprintf(w, "Codes: %d\n", count)
	fmt.Fprintf(w, "Modified: %s\n", info.ModTime().Format(time.DateTime))
	fmt.Fprintln(w)
	return nil
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

type codeList struct {
	Path  string   `json:"path" yaml:"path"`
	Count int      `json:"count" yaml:"count"`
	Codes []string `json:"codes" yaml:"codes"`
}

// writeCodes renders list in format.
func writeCodes(w io.Writer, format string, list codeList) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return err
		}
		return enc.Close()

	case "text", "":
		for _, code := range list.Codes {
			fmt.Fprintln(w, code)
		}
		if len(list.Codes) < list.Count {
			fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("... %d of %d shown", len(list.Codes), list.Count)))
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
