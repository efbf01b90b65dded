package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/searchdispatch/internal/cmd/base"
	"github.com/hashicorp-forge/searchdispatch/internal/cmd/commands/backends"
	"github.com/hashicorp-forge/searchdispatch/internal/cmd/commands/query"
	"github.com/hashicorp-forge/searchdispatch/internal/cmd/commands/version"
)

// Commands is the mapping of all available commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	queryCommand := func(op query.Operation) cli.CommandFactory {
		return func() (cli.Command, error) {
			return &query.Command{Command: b, Operation: op}, nil
		}
	}

	Commands = map[string]cli.CommandFactory{
		"backends": func() (cli.Command, error) {
			return &backends.Command{Command: b}, nil
		},
		"search":   queryCommand(query.OperationSearch),
		"retrieve": queryCommand(query.OperationRetrieve),
		"random":   queryCommand(query.OperationRandom),
		"ids":      queryCommand(query.OperationIDs),
		"terms":    queryCommand(query.OperationTerms),
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
