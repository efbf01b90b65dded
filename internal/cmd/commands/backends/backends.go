package backends

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/hashicorp-forge/searchdispatch/internal/cmd/base"
	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/registry"
)

type Command struct {
	*base.Command

	flagConfig  string
	flagFormat  string
	flagHealth  bool
	flagTimeout time.Duration
}

func (c *Command) Synopsis() string {
	return "List configured backends and their capabilities"
}

func (c *Command) Help() string {
	return `Usage: searchdispatch backends [options]

  Lists every configured backend with its type and the optional
  capabilities it implements. With -health, each backend is also checked.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("backends", flag.ContinueOnError))

	f.StringVar(&c.flagConfig, "config", "searchdispatch.hcl", "Path to the configuration file.")
	f.StringVar(&c.flagFormat, "format", "json", "Output format: json or yaml.")
	f.BoolVar(&c.flagHealth, "health", false, "Check the health of every backend.")
	f.DurationVar(&c.flagTimeout, "timeout", 10*time.Second, "Timeout for health checks.")

	return f
}

type backendInfo struct {
	ID           string             `json:"id" yaml:"id"`
	Type         search.BackendType `json:"type" yaml:"type"`
	Capabilities []string           `json:"capabilities" yaml:"capabilities"`
	Healthy      *bool              `json:"healthy,omitempty" yaml:"healthy,omitempty"`
	Error        string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func (c *Command) Run(args []string) int {
	ui := c.UI

	if err := c.Flags().Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	ctx := context.Background()
	rt, err := c.NewRuntime(ctx, c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing backends: %v", err))
		return 1
	}
	defer rt.Close()

	var health map[string]registry.Health
	if c.flagHealth {
		hctx, cancel := context.WithTimeout(ctx, c.flagTimeout)
		defer cancel()
		health = make(map[string]registry.Health)
		for _, h := range rt.Registry.CheckHealth(hctx) {
			health[h.ID] = h
		}
	}

	var infos []backendInfo
	for _, id := range rt.Registry.IDs() {
		b, err := rt.Registry.Get(id)
		if err != nil {
			continue
		}
		cfg, _ := rt.Registry.Config(id)
		info := backendInfo{ID: id, Type: cfg.Type, Capabilities: registry.Capabilities(b)}
		if h, ok := health[id]; ok {
			healthy := h.Healthy
			info.Healthy = &healthy
			info.Error = h.Error
		}
		infos = append(infos, info)
	}

	if err := c.Output(infos, c.flagFormat); err != nil {
		ui.Error(err.Error())
		return 1
	}
	if c.flagHealth {
		for _, h := range health {
			if !h.Healthy {
				return 2
			}
		}
	}
	return 0
}
