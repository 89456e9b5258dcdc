package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "docs", Short: "Read and write documents"}
	cmd.AddCommand(newDocsListCmd())
	cmd.AddCommand(newDocsGetCmd())
	cmd.AddCommand(newDocsPutCmd())
	return cmd
}

func newDocsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <collection-path>",
		Short: "List the documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			docs, err := c.ListDocuments(cmd.Context(), db, collectionPath(args[0]))
			if err != nil {
				return err
			}
			header := documentColumns(docs)
			rows := make([][]string, len(docs))
			for i, d := range docs {
				row := make([]string, len(header))
				for j, k := range header {
					if v, ok := d[k]; ok {
						row[j] = views.FormatValue(v)
					}
				}
				rows[i] = row
			}
			return printOutput(cmd, docs, header, rows)
		},
	}
}

// documentColumns returns _id followed by every other key, sorted.
func documentColumns(docs []map[string]any) []string {
	keys := map[string]bool{}
	for _, d := range docs {
		for k := range d {
			if k != "_id" {
				keys[k] = true
			}
		}
	}
	return append([]string{"_id"}, slices.Sorted(maps.Keys(keys))...)
}

func newDocsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-path>",
		Short: "Show one document and its sub-collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			v := views.NewDocumentView(c, db, args[0])
			v.Load(cmd.Context())
			st := v.State()
			if st.Err != "" {
				return fmt.Errorf("get %s: %s", st.Path, st.Err)
			}
			rows := make([][]string, 0, len(st.Data))
			for _, k := range st.Keys() {
				rows = append(rows, []string{k, views.FormatValue(st.Data[k])})
			}
			for _, s := range st.SubCollections {
				rows = append(rows, []string{"[collection]", s})
			}
			return printOutput(cmd, map[string]any{"data": st.Data, "subcollections": st.SubCollections},
				[]string{"Field", "Value"}, rows)
		},
	}
}

func newDocsPutCmd() *cobra.Command {
	var (
		data string
		file string
	)
	cmd := &cobra.Command{
		Use:   "put <collection-path> <id> [field=value...]",
		Short: "Create or replace a document",
		Long: "Create or replace a document. The body comes from --data, --file or\n" +
			"field=value pairs; values are read as JSON when they parse.\n" +
			"Required fields of the collection's schema are checked before sending.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := documentBody(data, file, args[2:])
			if err != nil {
				return err
			}
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			v := views.NewCollectionView(c, db, collectionPath(args[0]))
			v.LoadMetadata(cmd.Context())
			if st := v.State(); st.MetaErr != "" {
				return fmt.Errorf("load schema: %s", st.MetaErr)
			}
			err = v.AddDocument(cmd.Context(), args[1], body)
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				for _, f := range verr.Fields {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f.Label, f.Reason)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.State().Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "document body as a JSON object")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document body from a JSON file")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	return cmd
}

func documentBody(data, file string, pairs []string) (map[string]any, error) {
	body := map[string]any{}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		data = string(b)
	}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			return nil, fmt.Errorf("document body must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		k, raw, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected field=value, got %q", p)
		}
		var val any
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			val = raw
		}
		body[k] = val
	}
	return body, nil
}
