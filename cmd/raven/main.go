// Command raven is Raven's CLI: run a script file, or drop into an
// interactive REPL when invoked with no file argument.
//
// Grounded on DYMS's main.go (extension check, read-file, run,
// exit-on-error shape), restructured around a cobra root command per
// ymm135-go's cobra-style tooling-command layout, with exit codes
// following clox's convention (also how DYMS's own error paths map:
// usage error, compile error, runtime error, I/O error).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ravenlang/raven/internal/config"
	"github.com/ravenlang/raven/internal/module"
	"github.com/ravenlang/raven/internal/vm"
)

const version = "0.1.0"

const (
	exitOK       = 0
	exitUsage    = 64
	exitDataErr  = 65
	exitSoftware = 70
	exitIOErr    = 74
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		configFile string
		stressGC   bool
		showVer    bool
	)

	root := &cobra.Command{
		Use:          "raven [script]",
		Short:        "Raven is a dynamically typed, expression-oriented scripting language",
		SilenceUsage: true,
		Args:         cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if showVer {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				return exitError{code: exitUsage, err: err}
			}
			if stressGC {
				cfg.StressGC = true
			}

			log := logrus.New()
			log.SetLevel(config.ParseLevel(log, cfg.LogLevel))

			if len(cmdArgs) == 0 {
				return runREPL(log, cfg)
			}
			return runFile(log, cfg, cmdArgs[0])
		},
	}

	root.Flags().StringVarP(&configFile, "config", "c", "", "path to a raven.yaml config file")
	root.Flags().BoolVar(&stressGC, "stress-gc", false, "collect garbage before every allocation (debugging)")
	root.Flags().BoolVarP(&showVer, "version", "V", false, "print the version and exit")
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, ee.err)
			}
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	return exitOK
}

// exitError carries a process exit code alongside the error cobra
// reports, so run can translate compiler/runtime/I/O failures into
// spec.md's distinct exit codes instead of cobra's flat nonzero exit.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func newVM(log *logrus.Logger, cfg config.Config, scriptDir string) *vm.VM {
	return vm.New(vm.Config{
		InitialGCThreshold: cfg.GCInitialThreshold,
		GCGrowthFactor:     cfg.GCGrowthFactor,
		StressGC:           cfg.StressGC,
		Log:                log,
		Resolver:           module.NewOSResolver(scriptDir),
	})
}

func runFile(log *logrus.Logger, cfg config.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return exitError{code: exitIOErr, err: errors.Wrapf(err, "reading %s", path)}
	}

	v := newVM(log, cfg, filepath.Dir(path))
	_, rerr, cerrs := v.Interpret(string(src))
	if len(cerrs) > 0 {
		for _, ce := range cerrs {
			fmt.Fprintln(os.Stderr, ce.Error())
		}
		return exitError{code: exitDataErr}
	}
	if rerr != nil {
		fmt.Fprintln(os.Stderr, rerr.Report())
		return exitError{code: exitSoftware}
	}
	return nil
}
