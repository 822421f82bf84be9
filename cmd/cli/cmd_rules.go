package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/waftester/scantriage/pkg/cli"
	"github.com/waftester/scantriage/pkg/defaults"
	"github.com/waftester/scantriage/pkg/ui"
)

const rulesUsage = defaults.ToolName + " rules [-config file] [-category name] [-json]"

func runRules(args []string) int {
	opts := &cli.RulesOptions{}
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file with extra rules")
	fs.StringVar(&opts.Category, "category", "", "Only list rules of this category")
	fs.BoolVar(&opts.JSON, "json", false, "Output in JSON format")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return exitCode(fmt.Errorf("%w: %w", cli.ErrUsage, err), rulesUsage)
	}
	if fs.NArg() > 0 {
		return exitCode(fmt.Errorf("%w: unexpected argument %q", cli.ErrUsage, fs.Arg(0)), rulesUsage)
	}
	ui.SetNoColor(*noColor || opts.JSON)

	return exitCode(cli.RunRules(opts, os.Stdout), rulesUsage)
}
