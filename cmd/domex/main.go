// Command domex parses, optimizes, compiles and runs record filter domains.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/domex/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
