package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
)

var (
	tablesListJSON   bool
	tablesListFileID string
	tablesShowJSON   bool
	tablesShowRows   int
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Browse tables parsed from uploaded spreadsheets",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tables in the workspace",
	Args:  cobra.NoArgs,
	RunE:  runTablesList,
}

var tablesShowCmd = &cobra.Command{
	Use:   "show <table-id>",
	Short: "Show a table's schema and preview rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runTablesShow,
}

func init() {
	tablesListCmd.Flags().BoolVar(&tablesListJSON, "json", false, "Output JSON")
	tablesListCmd.Flags().StringVar(&tablesListFileID, "file", "", "Only tables parsed from this file ID")

	tablesShowCmd.Flags().BoolVar(&tablesShowJSON, "json", false, "Output JSON")
	tablesShowCmd.Flags().IntVar(&tablesShowRows, "rows", 0, "Number of preview rows (server default 10)")

	tablesCmd.AddCommand(tablesListCmd)
	tablesCmd.AddCommand(tablesShowCmd)
}

func runTablesList(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	resp, err := c.ListTables(ctx, &client.ListTablesRequest{FileID: tablesListFileID})
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	if tablesListJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if len(resp.Tables) == 0 {
		fmt.Println("No tables yet. Upload a spreadsheet and wait for parsing to finish.")
		return nil
	}
	for _, t := range resp.Tables {
		fmt.Printf("%s  %-30s %8d rows, %d columns\n", t.TableID, t.Name, t.RowCount, len(t.Columns))
	}
	return nil
}

func runTablesShow(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	var req *client.GetTableRequest
	if tablesShowRows > 0 {
		req = &client.GetTableRequest{PreviewRows: tablesShowRows}
	}
	resp, err := c.GetTable(ctx, args[0], req)
	if err != nil {
		return fmt.Errorf("fetching table: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("table %s not found", args[0])
	}

	if tablesShowJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	t := resp.Table
	color.New(color.Bold).Printf("%s", t.Name)
	fmt.Printf("  (%s, %d rows)\n", t.TableID, t.RowCount)
	if t.FileID != "" {
		fmt.Printf("  from file %s\n", t.FileID)
	}

	fmt.Println("\nColumns:")
	for _, col := range t.Columns {
		nullable := ""
		if col.Nullable {
			nullable = " (nullable)"
		}
		line := fmt.Sprintf("  %-24s %s%s", col.Name, col.Type, nullable)
		if col.Example != "" {
			line += "  e.g. " + col.Example
		}
		fmt.Println(line)
	}

	if len(resp.PreviewRows) > 0 {
		fmt.Println("\nPreview:")
		printRowGrid(resp.PreviewColumns, resp.PreviewRows)
	}
	return nil
}

// printRowGrid renders rows as a column-aligned grid with a header line.
func printRowGrid(columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%-*s", widths[i], col)
	}
	fmt.Println("  " + b.String())

	for _, row := range rows {
		b.Reset()
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			w := len(cell)
			if i < len(widths) {
				w = widths[i]
			}
			fmt.Fprintf(&b, "%-*s", w, cell)
		}
		fmt.Println("  " + b.String())
	}
}
