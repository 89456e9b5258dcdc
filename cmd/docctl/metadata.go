package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/internal/snapshot"
	"github.com/faciam-dev/docmeta/pkg/audit"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/metacodec"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/sdk/client"
)

func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "metadata", Aliases: []string{"meta"}, Short: "Inspect and edit collection schemas"}
	cmd.AddCommand(newMetadataKeyCmd())
	cmd.AddCommand(newMetadataListCmd())
	cmd.AddCommand(newMetadataGetCmd())
	cmd.AddCommand(newMetadataExportCmd())
	cmd.AddCommand(newMetadataApplyCmd())
	cmd.AddCommand(newMetadataSnapshotCmd())
	cmd.AddCommand(newMetadataHistoryCmd())
	cmd.AddCommand(newFieldCmd())
	cmd.AddCommand(newTableCmd())
	cmd.AddCommand(newFKCmd())
	return cmd
}

// metadataKey accepts a collection or document path, a dotted storage name,
// or a key that is already encoded.
func metadataKey(arg string) string {
	if strings.Contains(arg, docpath.KeyDelimiter) {
		return arg
	}
	return docpath.Key(collectionPath(arg))
}

func newMetadataKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <path>",
		Short: "Print the schema key of a collection or document path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), metadataKey(args[0]))
			return nil
		},
	}
}

func newMetadataListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the schemas defined in a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			env, err := c.ListMetadata(cmd.Context(), db)
			if err != nil {
				return err
			}
			var rows [][]string
			for _, k := range slices.Sorted(maps.Keys(env)) {
				def := env[k]
				rows = append(rows, []string{k, def.Table.PrimaryKey, fmt.Sprint(def.Fields.Len())})
			}
			return printOutput(cmd, env, []string{"Key", "Primary key", "Fields"}, rows)
		},
	}
}

func newMetadataGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path|key>",
		Short: "Show the schema of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			key := metadataKey(args[0])
			def, err := c.GetMetadata(cmd.Context(), db, key)
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("no schema defined for %s", key)
			}
			if err != nil {
				return err
			}
			var rows [][]string
			for k, f := range def.Fields.All() {
				rows = append(rows, []string{k, string(f.DataType), fmt.Sprint(f.Required), f.Label, f.StorageType.String()})
			}
			return printOutput(cmd, schema.Envelope{key: def}, []string{"Field", "Type", "Required", "Label", "Storage"}, rows)
		},
	}
}

func newMetadataExportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every schema of a database as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			env, err := c.ListMetadata(cmd.Context(), db)
			if err != nil {
				return err
			}
			entries := make([]metacodec.Entry, 0, len(env))
			for k, def := range env {
				entries = append(entries, metacodec.Entry{Key: k, Definition: def})
			}
			b, err := metacodec.Encode(db, entries)
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(file, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d schemas to %s\n", len(entries), file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "output file (default stdout)")
	return cmd
}

func newMetadataApplyCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply schemas from a YAML file, printing what changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			f, err := metacodec.Decode(data)
			if err != nil {
				return err
			}
			c, r, err := apiClient(cmd)
			if err != nil {
				return err
			}
			db := r.Database
			if db == "" {
				db = f.Database
			}
			if db == "" {
				return errNoDB
			}
			for _, e := range f.Definitions {
				if err := e.Definition.Check(); err != nil {
					return fmt.Errorf("%s: %w", e.Key, err)
				}
			}
			w := cmd.OutOrStdout()
			var changed int
			for _, e := range f.Definitions {
				ch, err := schemaChange(cmd.Context(), c, db, e.Key, e.Definition)
				if err != nil {
					return err
				}
				if ch.Empty() {
					fmt.Fprintf(w, "= %s unchanged\n", e.Key)
					continue
				}
				changed++
				fmt.Fprintf(w, "~ %s (%s)\n%s", e.Key, ch.Summary(), ch.Diff)
				if dryRun {
					continue
				}
				if err := c.SaveMetadata(cmd.Context(), db, e.Key, e.Definition); err != nil {
					return fmt.Errorf("save %s: %w", e.Key, err)
				}
			}
			verb := "Applied"
			if dryRun {
				verb = "Would apply"
			}
			fmt.Fprintf(w, "%s %d of %d schemas to %s\n", verb, changed, len(f.Definitions), db)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file to apply")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the changes without saving")
	mustFlag(cmd, "file")
	return cmd
}

// schemaChange compares def with the definition stored under key.
func schemaChange(ctx context.Context, c *client.Client, db, key string, def schema.Definition) (audit.Change, error) {
	cur, err := c.GetMetadata(ctx, db, key)
	switch {
	case errors.Is(err, client.ErrNotFound):
		return audit.Definitions(nil, def)
	case err != nil:
		return audit.Change{}, err
	}
	return audit.Definitions(&cur, def)
}

func newMetadataSnapshotCmd() *cobra.Command {
	var (
		dir    string
		bucket string
		prefix string
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a timestamped YAML snapshot of a database's schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			if remote {
				name, dest, err := c.Snapshot(cmd.Context(), db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s written to %s\n", name, dest)
				return nil
			}
			var dest snapshot.Dest = snapshot.LocalDir{Path: dir}
			if bucket != "" {
				s3, err := snapshot.NewS3(cmd.Context(), bucket, prefix)
				if err != nil {
					return err
				}
				dest = s3
			}
			name, err := snapshot.Export(cmd.Context(), c, db, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s written to %s\n", name, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "local directory")
	cmd.Flags().StringVar(&bucket, "s3", "", "S3 bucket (uses the default AWS credential chain)")
	cmd.Flags().StringVar(&prefix, "prefix", "docmeta", "S3 key prefix")
	cmd.Flags().BoolVar(&remote, "remote", false, "let the server write the snapshot to its own destination")
	return cmd
}

func newMetadataHistoryCmd() *cobra.Command {
	var (
		limit int
		diff  bool
	)
	cmd := &cobra.Command{
		Use:   "history [path|key]",
		Short: "Show recorded schema saves, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = metadataKey(args[0])
			}
			items, _, err := c.AuditLog(cmd.Context(), db, key, limit, "")
			if err != nil {
				return err
			}
			if diff {
				for i, it := range items {
					if items[i], err = c.AuditDiff(cmd.Context(), db, it.ID); err != nil {
						return err
					}
				}
			}
			if diff && outputFormat(cmd) != "json" {
				w := cmd.OutOrStdout()
				for _, it := range items {
					fmt.Fprintf(w, "#%d %s %s by %s at %s\n%s\n", it.ID, it.Action, it.Key, it.Actor,
						it.AppliedAt.Format(time.RFC3339), it.Diff)
				}
				return nil
			}
			rows := make([][]string, len(items))
			for i, it := range items {
				rows[i] = []string{fmt.Sprint(it.ID), it.AppliedAt.Format(time.RFC3339), it.Actor, it.Action, it.Key, it.Summary}
			}
			return printOutput(cmd, items, []string{"ID", "Applied", "Actor", "Action", "Key", "Changes"}, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	cmd.Flags().BoolVar(&diff, "diff", false, "include the unified diff of each save")
	return cmd
}
