package main

import "errors"

// Exit statuses for fatal, run-aborting failure classes. Everything else
// exits 1.
const (
	exitGeneric      = 1
	exitDBUnreach    = 2
	exitStorageUnset = 3
	exitBadDateRange = 4
	exitNoArchive    = 5
)

// fatalError tags an error with its process exit status.
type fatalError struct {
	code int
	err  error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(code int, err error) error {
	return &fatalError{code: code, err: err}
}

func exitCode(err error) int {
	var fe *fatalError
	if errors.As(err, &fe) {
		return fe.code
	}
	return exitGeneric
}
