package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// outputFormat returns the --output value, or table when stdout is a
// terminal and json when it is not.
func outputFormat(cmd *cobra.Command) string {
	if f, _ := cmd.Root().PersistentFlags().GetString("output"); f != "" {
		return f
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "json"
}

// printOutput prints v as JSON, or as a table of rows under header.
func printOutput(cmd *cobra.Command, v any, header []string, rows [][]string) error {
	w := cmd.OutOrStdout()
	if outputFormat(cmd) == "json" || header == nil {
		return printJSON(w, v)
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func nameRows(names []string) [][]string {
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return rows
}
