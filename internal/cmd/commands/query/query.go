package query

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/hashicorp-forge/searchdispatch/internal/cmd/base"
	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
)

// Operation selects what a query Command runs.
type Operation string

const (
	OperationSearch   Operation = "search"
	OperationRetrieve Operation = "retrieve"
	OperationRandom   Operation = "random"
	OperationIDs      Operation = "ids"
	OperationTerms    Operation = "terms"
)

// Command runs a single search command against a configured backend.
type Command struct {
	*base.Command

	Operation Operation

	flagConfig  string
	flagBackend string
	flagFormat  string
	flagContext string
	flagOffset  int
	flagLimit   int
	flagFrom    string
	flagSitemap bool
	flagMetrics string
	flagParams  paramsFlag
}

// paramsFlag collects repeated -param key=value flags.
type paramsFlag struct {
	bag *search.ParamBag
}

func (p *paramsFlag) String() string { return "" }

func (p *paramsFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("parameter must be key=value, got %q", v)
	}
	if p.bag == nil {
		p.bag = search.NewParamBag(nil)
	}
	p.bag.Add(key, value)
	return nil
}

func (c *Command) Synopsis() string {
	switch c.Operation {
	case OperationSearch:
		return "Search a backend"
	case OperationRetrieve:
		return "Retrieve records by id"
	case OperationRandom:
		return "Return a random sample of matching records"
	case OperationIDs:
		return "List the ids (or sitemap fields) of matching records"
	case OperationTerms:
		return "List indexed terms of a field"
	}
	return ""
}

func (c *Command) Help() string {
	var usage string
	switch c.Operation {
	case OperationSearch:
		usage = `Usage: searchdispatch search -backend=<id> [options] [query]

  Searches the backend. An empty query matches all records.`
	case OperationRetrieve:
		usage = `Usage: searchdispatch retrieve -backend=<id> [options] <id> [<id>...]

  Retrieves records by id. Several ids are fetched as one batch, which is
  emulated with one retrieve per id on backends without batch support.`
	case OperationRandom:
		usage = `Usage: searchdispatch random -backend=<id> [options] [query]

  Returns up to -limit random records matching the query.`
	case OperationIDs:
		usage = `Usage: searchdispatch ids -backend=<id> [options] [query]

  Lists ids of matching records. With -sitemap, lists ids with their last
  modification time. Backends without a projection return full records.`
	case OperationTerms:
		usage = `Usage: searchdispatch terms -backend=<id> [options] <field>

  Lists indexed terms of a field in alphabetical order starting at -from.`
	}
	return usage + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet(string(c.Operation), flag.ContinueOnError))

	f.StringVar(&c.flagConfig, "config", "searchdispatch.hcl", "Path to the configuration file.")
	f.StringVar(&c.flagBackend, "backend", "", "(Required) Identifier of the backend to query.")
	f.StringVar(&c.flagFormat, "format", "json", "Output format: json or yaml.")
	f.StringVar(&c.flagContext, "context", "cli", "Context tag attached to the command.")
	f.Var(&c.flagParams, "param", "Backend parameter as key=value. May be repeated.")
	f.StringVar(&c.flagMetrics, "metrics", "", "Write command metrics in Prometheus text format to this file.")

	switch c.Operation {
	case OperationSearch, OperationIDs:
		f.IntVar(&c.flagOffset, "offset", 0, "Offset of the first record.")
		f.IntVar(&c.flagLimit, "limit", 20, "Maximum number of records.")
	case OperationRandom, OperationTerms:
		f.IntVar(&c.flagLimit, "limit", 10, "Maximum number of results.")
	}
	if c.Operation == OperationIDs {
		f.BoolVar(&c.flagSitemap, "sitemap", false, "Return sitemap fields instead of ids.")
	}
	if c.Operation == OperationTerms {
		f.StringVar(&c.flagFrom, "from", "", "Term to start listing at.")
	}

	return f
}

func (c *Command) Run(args []string) int {
	ui := c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagBackend == "" {
		ui.Error("backend flag is required")
		return 1
	}

	cmd, err := c.build(flags.Args())
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	ctx := context.Background()
	rt, err := c.NewRuntime(ctx, c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing backends: %v", err))
		return 1
	}
	defer rt.Close()

	res, err := rt.Service.Invoke(ctx, cmd)
	if c.flagMetrics != "" {
		if merr := rt.WriteMetrics(c.Fs, c.flagMetrics); merr != nil {
			ui.Error(merr.Error())
			return 1
		}
	}
	if err != nil {
		ui.Error(fmt.Sprintf("error running %s: %v", cmd.Operation(), err))
		return 1
	}

	if err := c.Output(newOutput(cmd, res), c.flagFormat); err != nil {
		ui.Error(err.Error())
		return 1
	}
	return 0
}

// build turns positional arguments into the command for c.Operation.
func (c *Command) build(args []string) (command.Command, error) {
	opts := []command.Option{command.WithContext(c.flagContext)}
	params := c.flagParams.bag

	switch c.Operation {
	case OperationSearch:
		return command.NewSearchCommand(c.flagBackend, queryFrom(args), c.flagOffset, c.flagLimit, params, opts...), nil
	case OperationRetrieve:
		switch len(args) {
		case 0:
			return nil, fmt.Errorf("at least one record id is required")
		case 1:
			return command.NewRetrieveCommand(c.flagBackend, args[0], params, opts...), nil
		default:
			return command.NewRetrieveBatchCommand(c.flagBackend, args, params, opts...), nil
		}
	case OperationRandom:
		return command.NewRandomCommand(c.flagBackend, queryFrom(args), c.flagLimit, params, opts...), nil
	case OperationIDs:
		if c.flagSitemap {
			return command.NewGetSitemapFieldsCommand(c.flagBackend, queryFrom(args), c.flagOffset, c.flagLimit, params, opts...), nil
		}
		return command.NewGetIDsCommand(c.flagBackend, queryFrom(args), c.flagOffset, c.flagLimit, params, opts...), nil
	case OperationTerms:
		if len(args) != 1 {
			return nil, fmt.Errorf("exactly one field name is required")
		}
		return command.NewTermsCommand(c.flagBackend, args[0], c.flagFrom, c.flagLimit, params, opts...), nil
	}
	return nil, fmt.Errorf("unknown operation %q", c.Operation)
}

func queryFrom(args []string) search.Query {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" || text == "*:*" {
		return search.MatchAllQuery{}
	}
	return search.NewStringQuery(text)
}

// output is the printed form of a command result.
type output struct {
	Backend   string           `json:"backend" yaml:"backend"`
	Operation string           `json:"operation" yaml:"operation"`
	Path      string           `json:"path" yaml:"path"`
	Total     *int             `json:"total,omitempty" yaml:"total,omitempty"`
	Offset    *int             `json:"offset,omitempty" yaml:"offset,omitempty"`
	Records   []search.Record  `json:"records,omitempty" yaml:"records,omitempty"`
	Terms     *search.TermList `json:"terms,omitempty" yaml:"terms,omitempty"`
	Details   map[string]any   `json:"details,omitempty" yaml:"details,omitempty"`
}

func newOutput(cmd command.Command, res command.Result) *output {
	out := &output{
		Backend:   cmd.TargetIdentifier(),
		Operation: cmd.Operation(),
		Path:      res.Path.String(),
		Details:   res.Details,
	}
	switch v := res.Value.(type) {
	case *search.RecordCollection:
		total, offset := v.Total(), v.Offset()
		out.Total, out.Offset = &total, &offset
		out.Records = v.Records()
	case *search.TermList:
		out.Terms = v
	}
	return out
}
