package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/ravenlang/raven/internal/config"
)

// runREPL drives an interactive session against one long-lived VM, so
// globals (and, via OP_IMPORT's module cache, imported modules)
// persist across lines the way spec.md §6's REPL requires. Grounded on
// DYMS's REPL absence (it had none) and spec.md §6 directly; the
// prompt/loop shape follows clox's interpret-a-line convention.
func runREPL(log *logrus.Logger, cfg config.Config) error {
	rl, err := readline.New("> ")
	if err != nil {
		return exitError{code: exitIOErr, err: err}
	}
	defer rl.Close()

	fmt.Printf("raven %s\n", version)
	v := newVM(log, cfg, ".")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return exitError{code: exitIOErr, err: err}
		}
		if line == "" {
			continue
		}

		result, rerr, cerrs := v.Interpret(line)
		if len(cerrs) > 0 {
			for _, ce := range cerrs {
				fmt.Fprintln(rl.Stderr(), ce.Error())
			}
			continue
		}
		if rerr != nil {
			fmt.Fprintln(rl.Stderr(), rerr.Report())
			continue
		}
		fmt.Fprintln(rl.Stdout(), result.String())
	}
}
