package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/waftester/scantriage/pkg/cli"
	"github.com/waftester/scantriage/pkg/ui"
)

// exitCode prints err and returns the status the process should exit
// with. Usage errors get a hint on where to find help.
func exitCode(err error, usage string) int {
	if err == nil {
		return 0
	}
	ui.PrintError(err.Error())
	if errors.Is(err, cli.ErrUsage) && usage != "" {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:", usage)
	}
	return cli.ExitCode(err)
}
