package common

import (
	"errors"
	"fmt"
)

// NotFoundError reports an entity the upstream source does not know about:
// an unknown ticker, a missing concept or a missing filing.
type NotFoundError struct {
	Kind string // "ticker", "concept", "filing"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// UpstreamError reports an unreachable source, a non-success status or a
// response of unexpected shape.
type UpstreamError struct {
	Source     string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s upstream error", e.Source)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status: %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports that nothing could be computed from the inputs.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

// NoDataError reports an empty price history for a symbol.
type NoDataError struct {
	Symbol string
}

func (e *NoDataError) Error() string {
	return "no price data for " + e.Symbol
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsUpstream reports whether err wraps an UpstreamError
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsInsufficientData reports whether err wraps an InsufficientDataError
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// IsNoData reports whether err wraps a NoDataError
func IsNoData(err error) bool {
	var target *NoDataError
	return errors.As(err, &target)
}
