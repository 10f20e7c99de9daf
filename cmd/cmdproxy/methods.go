package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/cmdproxy/invoke"
	"github.com/kbukum/cmdproxy/logger"
)

func newMethodsCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "methods [interface...]",
		Short: "List declared methods and their templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.manifest()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = m.Names()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				decl, ok := m.Lookup(name)
				if !ok {
					return fmt.Errorf("interface %q is not declared in %s", name, f.manifestFile)
				}
				p, err := invoke.Compile(decl.Declaration(), invoke.WithLogger(logger.NewNop()))
				if err != nil {
					return err
				}
				for _, method := range p.Methods() {
					d, _ := p.Descriptor(method)
					fmt.Fprintf(tw, "%s\t%s\n", d, d.Template().Raw())
				}
			}
			return tw.Flush()
		},
	}
}
