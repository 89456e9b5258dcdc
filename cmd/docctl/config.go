package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/docmeta/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage docctl profiles"}
	cmd.AddCommand(newConfigUseCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Set active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			prof := args[0]
			if err := cfg.Use(prof); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %q\n", prof)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			var rows [][]string
			for _, name := range slices.Sorted(maps.Keys(cfg.Profiles)) {
				p := cfg.Profiles[name]
				mark := ""
				if name == cfg.Active {
					mark = "*"
				}
				rows = append(rows, []string{mark, name, p.APIURL, p.Database})
			}
			return printOutput(cmd, cfg, []string{"", "Profile", "API URL", "Database"}, rows)
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := config.Resolve(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Profile  string `json:"profile"`
				APIURL   string `json:"apiUrl"`
				Database string `json:"database"`
				Timeout  string `json:"timeout"`
				Actor    string `json:"actor"`
			}{r.Profile, r.APIURL, r.Database, r.Timeout.String(), r.Actor})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <profile> <apiUrl|database|timeout|actor> <value>",
		Short: "Set a profile value, creating the profile if needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			name := args[0]
			if err := cfg.Set(name, args[1], args[2]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q updated\n", name)
			return nil
		},
	}
}
