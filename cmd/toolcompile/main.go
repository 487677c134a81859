// Command toolcompile compiles Go source into in-memory modules and runs them.
//
//	toolcompile run calc.go --method Add --args '[2,3]'
//	toolcompile caps
//	toolcompile serve
//
// Every flag can also be set through the environment as TOOLCOMPILE_<FLAG>,
// with dashes replaced by underscores.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// errFailed marks a command that already reported its failure.
var errFailed = errors.New("failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "toolcompile",
		Short:         "Compile and run Go source in memory",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCommand(),
		newCapsCommand(),
		newWorkerCommand(),
		newServeCommand(),
	)
	return root
}
