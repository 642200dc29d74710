package main

import "fmt"

const (
	exitCodeFailure = 1
	// exitCodeRejected reports credentials or a registration refused by every
	// resolver.
	exitCodeRejected = 2
	exitCodeCanceled = 130
)

type exitError struct {
	code   int
	err    error
	hint   string
	silent bool
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func rejected(err error) error {
	return &exitError{code: exitCodeRejected, err: err}
}
