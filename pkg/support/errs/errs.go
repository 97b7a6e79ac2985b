// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package errs defines the error kinds reported by stagednet.
//
// Every error returned (or raised with panic inside numeric code) wraps one of the sentinel
// errors below, so callers can classify it with errors.Is:
//
//	if errors.Is(err, errs.ErrConfiguration) { ... }
//
// Configuration errors are raised eagerly, when a model or loss is built. Shape and state errors
// surface while a step is executed.
package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is wrapped by errors caused by invalid construction parameters: population
	// sizes that don't add up, unknown stage labels, callables whose capability can't be resolved, etc.
	ErrConfiguration = errors.New("configuration error")

	// ErrShape is wrapped by errors caused by incompatible tensor shapes.
	ErrShape = errors.New("shape error")

	// ErrState is wrapped by errors caused by accessing a state field that doesn't exist, e.g. the
	// output of a network without a readout.
	ErrState = errors.New("state error")
)

// Configurationf returns an error wrapping ErrConfiguration, with a stack trace.
func Configurationf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// Shapef returns an error wrapping ErrShape, with a stack trace.
func Shapef(format string, args ...any) error {
	return errors.Wrapf(ErrShape, format, args...)
}

// Statef returns an error wrapping ErrState, with a stack trace.
func Statef(format string, args ...any) error {
	return errors.Wrapf(ErrState, format, args...)
}

// IsConfiguration reports whether err is (or wraps) a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsShape reports whether err is (or wraps) a shape error.
func IsShape(err error) bool { return errors.Is(err, ErrShape) }

// IsState reports whether err is (or wraps) a state error.
func IsState(err error) bool { return errors.Is(err, ErrState) }
