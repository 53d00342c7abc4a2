// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"

	"github.com/kmccurley/cryptobib/internal/lookup"
	"github.com/kmccurley/cryptobib/internal/patch"
	"github.com/kmccurley/cryptobib/internal/resolve"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (network failure, bad flags)
	ExitConfigError = 2 // Missing input file, existing output file, invalid config
	ExitDataError   = 3 // Corpus error (record without year, malformed doi row)
)

// ErrInputMissing is returned when a required input file does not exist.
var ErrInputMissing = errors.New("input file not found")

// exitError carries a specific exit code to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// withExit tags err with an exit code.
func withExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, resolve.ErrMissingYear), errors.Is(err, patch.ErrMalformedRow):
		return ExitDataError
	case errors.Is(err, ErrInputMissing), errors.Is(err, lookup.ErrOutputExists):
		return ExitConfigError
	default:
		return ExitError
	}
}
