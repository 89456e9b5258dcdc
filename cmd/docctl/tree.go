package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/sdk/client"
)

func newTreeCmd() *cobra.Command {
	var collectionsOnly bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the collections and documents of a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			t, err := fetchTree(cmd, c, db, !collectionsOnly)
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), t)
			}
			w := cmd.OutOrStdout()
			for n := range t.Walk() {
				indent := strings.Repeat("  ", n.Depth)
				if n.Kind == doctree.KindCollection {
					fmt.Fprintf(w, "%s%s/\n", indent, n.Name)
				} else {
					fmt.Fprintf(w, "%s%s\n", indent, n.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&collectionsOnly, "collections-only", false, "skip fetching documents")
	return cmd
}

// fetchTree rebuilds db as a tree from its collection listing, then fills in
// the documents of every collection.
func fetchTree(cmd *cobra.Command, c *client.Client, db string, withDocs bool) (*doctree.Tree, error) {
	names, err := c.ListCollections(cmd.Context(), db)
	if err != nil {
		return nil, err
	}
	t := doctree.New()
	for _, n := range names {
		if _, err := t.EnsureCollection(docpath.PathFromStorageName(n)); err != nil {
			return nil, fmt.Errorf("collection %q: %w", n, err)
		}
	}
	if !withDocs {
		return t, nil
	}
	var colls []*doctree.Collection
	for n := range t.Walk() {
		if n.Kind == doctree.KindCollection {
			colls = append(colls, n.Collection)
		}
	}
	for _, col := range colls {
		docs, err := c.ListDocuments(cmd.Context(), db, col.Path)
		if err != nil {
			return nil, err
		}
		if err := col.Merge(docs); err != nil {
			return nil, fmt.Errorf("collection %q: %w", col.Path, err)
		}
	}
	return t, nil
}
