package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/internal/views"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "List and create databases"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			names, err := c.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd, names, []string{"Database"}, nameRows(names))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a database if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			v := views.NewDatabaseList(c)
			if err := v.Create(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.State().Status)
			return nil
		},
	})
	return cmd
}
