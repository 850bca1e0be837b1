// Package billerr defines the error taxonomy shared by the bill analysis engine.
package billerr

import (
	"errors"
	"fmt"
)

// Code classifies engine errors
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeInsufficientHistory Code = "INSUFFICIENT_HISTORY"
	CodeComputationSkipped  Code = "COMPUTATION_SKIPPED"
)

// NotFoundError reports a missing user, bill, period, plan or add-on.
// It is propagated to the caller and never retried.
type NotFoundError struct {
	Entity string // user, bill, plan, addon, ...
	Key    string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %s not found", CodeNotFound, e.Entity, e.Key)
}

// NotFound builds a NotFoundError for the given entity and key.
func NotFound(entity string, key any) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

// InsufficientHistoryError marks a baseline window with no prior periods.
// The engine never returns it as a failure; it is rendered as a warning.
type InsufficientHistoryError struct {
	UserID int
	Period string
}

// Error implements the error interface
func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for user %d before %s (weak baseline)", e.UserID, e.Period)
}

// ComputationSkipped wraps the failure of a single scenario candidate.
// Search swallows it and excludes the candidate from results.
type ComputationSkipped struct {
	Candidate string
	Err       error
}

// Error implements the error interface
func (e *ComputationSkipped) Error() string {
	return fmt.Sprintf("%s: candidate %s: %v", CodeComputationSkipped, e.Candidate, e.Err)
}

// Unwrap returns the underlying cause
func (e *ComputationSkipped) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInsufficientHistory reports whether err wraps an InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var ih *InsufficientHistoryError
	return errors.As(err, &ih)
}

// IsSkipped reports whether err wraps a ComputationSkipped.
func IsSkipped(err error) bool {
	var cs *ComputationSkipped
	return errors.As(err, &cs)
}
