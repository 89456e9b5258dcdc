package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docctl",
		Short:         "Browse document databases and edit their schema metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("api-url", "", "API base URL")
	root.PersistentFlags().String("profile", "", "Profile name in config (overrides active)")
	root.PersistentFlags().String("output", "", "Output format (table|json); defaults to table on a terminal")
	root.PersistentFlags().String("db", "", "Database name")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log API requests")

	root.AddCommand(newConfigCmd())
	root.AddCommand(newDBCmd())
	root.AddCommand(newCollectionsCmd())
	root.AddCommand(newDocsCmd())
	root.AddCommand(newTreeCmd())
	root.AddCommand(newMetadataCmd())
	root.AddCommand(newExploreCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
