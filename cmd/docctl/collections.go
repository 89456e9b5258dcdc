package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/docpath"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "collections", Aliases: []string{"coll"}, Short: "List and create collections"}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List top-level collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			if all {
				names, err := c.ListCollections(cmd.Context(), db)
				if err != nil {
					return err
				}
				rows := make([][]string, len(names))
				for i, n := range names {
					rows[i] = []string{n, docpath.PathFromStorageName(n), docpath.KeyFromStorageName(n)}
				}
				return printOutput(cmd, names, []string{"Storage name", "Path", "Schema key"}, rows)
			}
			v := views.NewCollectionList(c, db)
			v.Load(cmd.Context())
			st := v.State()
			if st.Err != "" {
				return fmt.Errorf("list collections: %s", st.Err)
			}
			return printOutput(cmd, st.Names, []string{"Collection"}, nameRows(st.Names))
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include sub-collections")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "create <path>",
		Short: "Create a collection; users/u1/posts or users.u1.posts creates a sub-collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			p := collectionPath(args[0])
			if err := docpath.ValidatePath(p); err != nil {
				return err
			}
			if docpath.IsDocument(p) {
				return fmt.Errorf("%q addresses a document", p)
			}
			if docpath.Depth(p) > 0 {
				if err := c.CreateSubCollection(cmd.Context(), db, docpath.Parent(p), docpath.Name(p)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sub-collection '%s' created.\n", p)
				return nil
			}
			v := views.NewCollectionList(c, db)
			if err := v.Create(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.State().Status)
			return nil
		},
	})
	return cmd
}

// collectionPath accepts a tree path or a dotted storage name.
func collectionPath(arg string) string {
	if strings.Contains(arg, docpath.Separator) {
		return docpath.Join(arg)
	}
	return docpath.PathFromStorageName(arg)
}
