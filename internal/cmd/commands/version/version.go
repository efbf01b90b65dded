package version

import (
	"github.com/hashicorp-forge/searchdispatch/internal/cmd/base"
	"github.com/hashicorp-forge/searchdispatch/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: searchdispatch version

  Prints the searchdispatch version.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output("searchdispatch v" + version.String())
	return 0
}
