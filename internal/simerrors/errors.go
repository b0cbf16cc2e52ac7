// Package simerrors centralizes the error-kind taxonomy for the backtest
// engine, modeled on the order package's Operation-tagged wrapped errors.
package simerrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure from the simulation pipeline.
type Kind string

const (
	KindInvalidDateRange  Kind = "invalid_date_range"
	KindFutureDateRequest Kind = "future_date_requested"
	KindCandleMissing     Kind = "candle_missing"
	KindCandleGap         Kind = "candle_gap"
	KindRouteValidation   Kind = "route_validation"
	KindStrategyRuntime   Kind = "strategy_runtime"
	KindMatchingInvariant Kind = "matching_invariant"
)

// SimError carries a Kind plus the offending subject (a route identity,
// a symbol, a date) alongside the wrapped cause.
type SimError struct {
	Kind    Kind
	Subject string
	Err     error
}

func (e *SimError) Error() string {
	if e == nil {
		return ""
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SimError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs a SimError, leaving an already-tagged error untouched.
func New(kind Kind, subject string, err error) error {
	if err == nil {
		return nil
	}
	var se *SimError
	if errors.As(err, &se) {
		return err
	}
	return &SimError{Kind: kind, Subject: subject, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
