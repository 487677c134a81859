package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/host"
	"github.com/jonwraymond/toolcompile/host/isolated"
	"github.com/jonwraymond/toolcompile/reference"
)

func newWorkerCommand() *cobra.Command {
	var f engineFlags
	v := newViper()
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Serve one module over stdin/stdout for process isolation",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.load(v, cmd); err != nil {
				return err
			}
			logger := f.logger()
			defer func() { _ = logger.Sync() }()

			h, err := host.New(host.Config{
				Environment:    reference.DefaultEnvironment(),
				MaxOutputBytes: f.maxOutputBytes,
				Logger:         code.NewZapLogger(logger),
			})
			if err != nil {
				return err
			}
			return isolated.Serve(cmd.Context(), os.Stdin, os.Stdout, h)
		},
	}
	f.bind(v, cmd)
	return cmd
}
