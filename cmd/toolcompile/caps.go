package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCapsCommand() *cobra.Command {
	var (
		f      engineFlags
		asJSON bool
	)
	v := newViper()
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "List the capabilities this host can resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.load(v, cmd); err != nil {
				return err
			}
			e, err := f.newExec(f.logger(), nil)
			if err != nil {
				return err
			}
			defer e.Close()

			caps := e.Capabilities()
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(caps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CAPABILITY\tPATHS")
			for _, c := range caps {
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, strings.Join(c.Paths, ", "))
			}
			return tw.Flush()
		},
	}
	f.bind(v, cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
