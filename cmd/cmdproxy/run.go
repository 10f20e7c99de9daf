package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/cmdproxy/invoke"
)

func newRunCommand(f *rootFlags) *cobra.Command {
	var (
		timeout time.Duration
		dir     string
	)
	cmd := &cobra.Command{
		Use:   "run <interface>.<method> [args...]",
		Short: "Invoke a declared method",
		Long: `Invoke a declared method with the given arguments.

Arguments fill the method's parameters in order. A variadic parameter takes
every remaining argument, a timeout parameter takes a duration such as 5s,
and a sink parameter takes no argument: the output streams to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ifaceName, method, err := splitTarget(args[0])
			if err != nil {
				return err
			}
			m, err := f.manifest()
			if err != nil {
				return err
			}
			decl, ok := m.Lookup(ifaceName)
			if !ok {
				return fmt.Errorf("interface %q is not declared in %s", ifaceName, f.manifestFile)
			}
			app, err := f.newApp()
			if err != nil {
				return err
			}

			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				opts := app.InvokeOptions()
				if timeout > 0 {
					opts = append(opts, invoke.WithTimeout(timeout))
				}
				if dir != "" {
					opts = append(opts, invoke.WithDir(dir))
				}
				p, err := invoke.Compile(decl.Declaration(), opts...)
				if err != nil {
					return err
				}
				d, ok := p.Descriptor(method)
				if !ok {
					return fmt.Errorf("%s has no method %q", ifaceName, method)
				}
				callArgs, err := cliArgs(d, args[1:], cmd.OutOrStdout())
				if err != nil {
					return err
				}
				out, err := p.Call(ctx, method, callArgs...)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "timeout for methods that declare none")
	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory for methods that declare none")
	return cmd
}

// splitTarget splits "iface.method" at the last dot.
func splitTarget(target string) (iface, method string, err error) {
	i := strings.LastIndexByte(target, '.')
	if i <= 0 || i == len(target)-1 {
		return "", "", fmt.Errorf("target %q must be <interface>.<method>", target)
	}
	return target[:i], target[i+1:], nil
}

// cliArgs converts command line words to call arguments for d.
func cliArgs(d *invoke.Descriptor, words []string, out io.Writer) ([]any, error) {
	var args []any
	i := 0
	for _, p := range d.Params() {
		switch {
		case p.Role == invoke.RoleSink:
			args = append(args, out)
			continue
		case p.Variadic:
			for ; i < len(words); i++ {
				args = append(args, words[i])
			}
			continue
		case i >= len(words):
			return nil, fmt.Errorf("%s: missing argument %s", d, p.Name)
		}

		w := words[i]
		i++
		if p.Role == invoke.RoleTimeout {
			t, err := time.ParseDuration(w)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", d, p.Name, err)
			}
			args = append(args, t)
			continue
		}
		args = append(args, w)
	}
	if i < len(words) {
		return nil, fmt.Errorf("%s: %d unexpected arguments", d, len(words)-i)
	}
	return args, nil
}

func printResult(w io.Writer, v any) error {
	var err error
	switch x := v.(type) {
	case nil:
	case string:
		_, err = io.WriteString(w, x)
	case []byte:
		_, err = w.Write(x)
	case []string:
		for _, line := range x {
			if _, err = fmt.Fprintln(w, line); err != nil {
				break
			}
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(x)
	}
	return err
}
