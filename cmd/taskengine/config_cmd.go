package main

import (
	"fmt"

	"github.com/Swind/go-task-engine/core"
	yaml "github.com/goccy/go-yaml"
	"github.com/urfave/cli/v2"
)

func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Print the effective configuration",
		Action: ConfigAction,
	}
}

func ConfigAction(c *cli.Context) error {
	cfg, err := core.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	fmt.Print(string(out))
	return nil
}
