package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/pkg/config"
	"github.com/faciam-dev/docmeta/sdk/client"
)

var errNoDB = errors.New("no database selected: pass --db, set DOCCTL_DB or add one to the profile")

// cliLogger returns a development logger with --verbose and a no-op one
// otherwise.
func cliLogger(cmd *cobra.Command) *zap.SugaredLogger {
	if v, _ := cmd.Root().PersistentFlags().GetBool("verbose"); v {
		if l, err := zap.NewDevelopment(); err == nil {
			return l.Sugar()
		}
	}
	return zap.NewNop().Sugar()
}

// apiClient builds a client from the resolved flags, environment and profile.
func apiClient(cmd *cobra.Command) (*client.Client, config.Resolved, error) {
	r, err := config.Resolve(cmd)
	if err != nil {
		return nil, config.Resolved{}, err
	}
	c := client.New(r.APIURL, client.WithTimeout(r.Timeout), client.WithLogger(cliLogger(cmd)), client.WithActor(r.Actor))
	return c, r, nil
}

// dbClient is apiClient for commands that work inside one database.
func dbClient(cmd *cobra.Command) (*client.Client, string, error) {
	c, r, err := apiClient(cmd)
	if err != nil {
		return nil, "", err
	}
	if r.Database == "" {
		return nil, "", errNoDB
	}
	return c, r.Database, nil
}
