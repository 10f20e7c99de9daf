package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/cmdproxy/bootstrap"
	"github.com/kbukum/cmdproxy/config"
	"github.com/kbukum/cmdproxy/manifest"
	"github.com/kbukum/cmdproxy/version"
)

const serviceName = "cmdproxy"

// DefaultManifest is read when --manifest is not given.
const DefaultManifest = "cmdproxy.manifest.yml"

type rootFlags struct {
	configFile   string
	manifestFile string
	verbose      bool
}

func newRootCommand() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Run external programs through declared method signatures",
		Long: `cmdproxy runs the methods declared in a manifest as external processes.

Each method has a command template whose {?} placeholders are filled from
the arguments given on the command line. Results are written to stdout.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&f.configFile, "config", "c", "", "config file (default: search for "+config.FileName+")")
	root.PersistentFlags().StringVarP(&f.manifestFile, "manifest", "m", DefaultManifest, "interface manifest")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log every invocation")

	root.AddCommand(newRunCommand(f), newMethodsCommand(f), newVersionCommand())
	return root
}

func (f *rootFlags) newApp() (*bootstrap.App, error) {
	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return nil, err
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	return bootstrap.NewApp(cfg, bootstrap.WithVersion(version.Get().Short()))
}

func (f *rootFlags) manifest() (*manifest.Manifest, error) {
	return manifest.Load(f.manifestFile)
}
