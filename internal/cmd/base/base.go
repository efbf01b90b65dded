package base

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Command holds what every subcommand needs.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger
	Fs  afero.Fs
}

// NewCommand returns a Command reading files from the OS filesystem.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{UI: ui, Log: log, Fs: afero.NewOsFs()}
}

// Output writes v to the UI as JSON or YAML.
func (c *Command) Output(v any, format string) error {
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(format) {
	case "", "json":
		b, err = json.MarshalIndent(v, "", "  ")
	case "yaml", "yml":
		b, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	c.UI.Output(strings.TrimRight(string(b), "\n"))
	return nil
}

// FlagSet wraps flag.FlagSet to render help text.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet returns a FlagSet around f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help returns the options section of a command's help text.
func (f *FlagSet) Help() string {
	var sb strings.Builder
	sb.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&sb, "\n  -%s", fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&sb, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&sb, "\n      %s\n", fl.Usage)
	})
	return strings.TrimRight(sb.String(), "\n")
}
