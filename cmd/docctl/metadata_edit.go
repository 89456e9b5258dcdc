package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/fieldeditor"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// editMetadata opens the schema of the collection at args[0], applies fn
// and saves the result.
func editMetadata(cmd *cobra.Command, arg string, fn func(*views.MetadataSession) error) error {
	c, db, err := dbClient(cmd)
	if err != nil {
		return err
	}
	s, err := views.OpenMetadata(cmd.Context(), c, db, collectionPath(arg), cliLogger(cmd))
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	s.Editor.ForeignKeys().Wait()
	if err := s.Save(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.Status, s.Key())
	return nil
}

func newFieldCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "field", Short: "Edit the fields of a schema"}

	var (
		dataType string
		required bool
		label    string
	)
	add := &cobra.Command{
		Use:   "add <path> <name>",
		Short: "Add a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt := schema.DataType(dataType)
			if !dt.Valid() {
				return fmt.Errorf("unknown data type %q", dataType)
			}
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				ed := s.Editor
				if _, ok := ed.Field(args[1]); ok {
					return fmt.Errorf("add %q: %w", args[1], schema.ErrFieldExists)
				}
				key := ed.Add()
				if err := ed.Rename(key, args[1]); err != nil {
					return err
				}
				return ed.Update(args[1], func(f *schema.FieldDefinition) {
					f.DataType = dt
					f.Required = required
					f.Label = label
				})
			})
		},
	}
	add.Flags().StringVarP(&dataType, "type", "t", string(schema.TypeString), "data type")
	add.Flags().BoolVar(&required, "required", false, "mark the field required")
	add.Flags().StringVar(&label, "label", "", "display label")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <path> <field> <new-name>",
		Short: "Rename a field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				return s.Editor.Rename(args[1], args[2])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <path> <field>",
		Short: "Delete a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				return s.Editor.Delete(args[1])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <path> <field> <attribute> <value>",
		Short:     "Set one attribute of a field",
		Long:      "Set one attribute of a field by its JSON name, e.g. min_length, storage_type or allowed_values.",
		Args:      cobra.ExactArgs(4),
		ValidArgs: fieldeditor.Attrs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				return s.Editor.SetAttr(args[1], args[2], args[3])
			})
		},
	})
	return cmd
}

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "table", Short: "Edit table settings of a schema"}
	var (
		primaryKey string
		indexes    []string
		audit      bool
		softDelete bool
	)
	set := &cobra.Command{
		Use:   "set <path>",
		Short: "Change the primary key, indexes, audit or soft delete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				ed := s.Editor
				if fl.Changed("primary-key") {
					if err := ed.SetPrimaryKey(primaryKey); err != nil {
						return err
					}
				}
				if fl.Changed("indexes") {
					if err := ed.SetIndexes(indexes); err != nil {
						return err
					}
				}
				if fl.Changed("audit") {
					ed.SetAudit(audit)
				}
				if fl.Changed("soft-delete") {
					ed.SetSoftDelete(softDelete)
				}
				return nil
			})
		},
	}
	set.Flags().StringVar(&primaryKey, "primary-key", "", "primary key field (empty clears it)")
	set.Flags().StringSliceVar(&indexes, "indexes", nil, "indexed fields")
	set.Flags().BoolVar(&audit, "audit", false, "audit changes")
	set.Flags().BoolVar(&softDelete, "soft-delete", false, "soft delete documents")
	cmd.AddCommand(set)
	return cmd
}

func newFKCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "fk", Short: "Edit foreign keys of a schema"}

	var column, refTable, refColumn string
	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a foreign key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				fks := s.Editor.ForeignKeys()
				i := fks.Add()
				if err := fks.SetColumn(i, column); err != nil {
					return err
				}
				if err := fks.SetReferencesTable(cmd.Context(), i, refTable); err != nil {
					return err
				}
				fks.Wait()
				choices, err := fks.Columns(i)
				if err != nil {
					return err
				}
				if choices.Err != nil {
					return fmt.Errorf("columns of %s: %w", refTable, choices.Err)
				}
				if len(choices.Columns) > 0 && !slices.Contains(choices.Columns, refColumn) {
					return fmt.Errorf("%s has no column %q (have %v)", refTable, refColumn, choices.Columns)
				}
				return fks.SetReferencesColumn(i, refColumn)
			})
		},
	}
	add.Flags().StringVar(&column, "column", "", "local column")
	add.Flags().StringVar(&refTable, "references-table", "", "referenced collection")
	add.Flags().StringVar(&refColumn, "references-column", "", "referenced column")
	mustFlag(add, "column")
	mustFlag(add, "references-table")
	mustFlag(add, "references-column")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <path> <index>",
		Short: "Remove the foreign key at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index %q: %w", args[1], err)
			}
			return editMetadata(cmd, args[0], func(s *views.MetadataSession) error {
				return s.Editor.ForeignKeys().Remove(i)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tables <path>",
		Short: "List collections a foreign key may reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, db, err := dbClient(cmd)
			if err != nil {
				return err
			}
			s, err := views.OpenMetadata(cmd.Context(), c, db, collectionPath(args[0]), cliLogger(cmd))
			if err != nil {
				return err
			}
			tables, err := s.TableChoices(cmd.Context())
			if err != nil {
				return err
			}
			return printOutput(cmd, tables, []string{"Collection"}, nameRows(tables))
		},
	})
	return cmd
}
