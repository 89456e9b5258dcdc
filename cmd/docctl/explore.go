package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/internal/tui"
	"github.com/faciam-dev/docmeta/pkg/docpath"
)

func newExploreCmd() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "explore [route]",
		Short: "Browse databases interactively",
		Long: "Open the terminal explorer. A route such as /database/app/users/u1 opens\n" +
			"that collection or document directly; --db opens the database.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := apiClient(cmd)
			if err != nil {
				return err
			}
			route := ""
			switch {
			case len(args) == 1:
				route = args[0]
			case r.Database != "":
				route = docpath.DatabaseRoute(r.Database)
			}
			// The screen belongs to the program; logs go to a file or nowhere.
			log := zap.NewNop().Sugar()
			if logFile != "" {
				cfg := zap.NewDevelopmentConfig()
				cfg.OutputPaths = []string{logFile}
				cfg.ErrorOutputPaths = []string{logFile}
				l, err := cfg.Build()
				if err != nil {
					return err
				}
				defer func() { _ = l.Sync() }()
				log = l.Sugar()
			}
			m, err := tui.New(cmd.Context(), c, route, tui.WithLogger(log))
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write debug logs to this file")
	return cmd
}
