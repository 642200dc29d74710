package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ecolearn/ecolearn/internal/directory"
	"github.com/ecolearn/ecolearn/internal/logging"
)

func main() {
	os.Exit(runMain(Execute, os.Stderr))
}

func runMain(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return 0
	}
	f := classify(err)
	if !f.silent {
		report(f, stderr)
	}
	return f.code
}

// failure is how a command error is surfaced to the operator.
type failure struct {
	err     error
	code    int
	message string
	hint    string
	silent  bool
}

func classify(err error) failure {
	f := failure{err: err, code: exitCodeFailure, message: "command failed"}

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		f.code, f.hint, f.silent = ee.code, ee.hint, ee.silent
		if ee.err != nil {
			f.err = ee.err
		}
		if ee.code == exitCodeRejected {
			f.message = "sign-in rejected"
		}
	case errors.Is(err, context.Canceled):
		f.code = exitCodeCanceled
		f.message = "command canceled"
	case errors.Is(err, directory.ErrCorrupt):
		f.message = "local directory unreadable"
		f.hint = "remove the ecolearn_users entry from the storage backend, then run `ecolearn directory seed`"
	}
	return f
}

func report(f failure, stderr io.Writer) {
	ctx := currentCommandExecutionContext()
	if ctx.UsesStructuredLog {
		cfg, err := logging.LoadConfigFromEnv()
		if err != nil {
			cfg = logging.DefaultConfig()
		}
		attrs := []any{"exit_code", f.code, "error", f.err}
		if f.hint != "" {
			attrs = append(attrs, "hint", f.hint)
		}
		logging.New(cfg, stderr, ctx.CommandPath).Error(f.message, attrs...)
		return
	}

	if f.code == exitCodeCanceled {
		fmt.Fprintln(stderr, "canceled")
		return
	}
	fmt.Fprintln(stderr, f.err)
	if f.hint != "" {
		fmt.Fprintln(stderr, "hint:", f.hint)
	}
}
