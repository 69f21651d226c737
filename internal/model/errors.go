package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRule is matched by every DuplicateRuleError.
	ErrDuplicateRule = errors.New("restriction rule already exists")

	// ErrConcurrencyConflict is returned by repositories when an insert loses a
	// uniqueness race. It must not escape the link ledger.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrInvalidInput marks caller mistakes (empty barcode, bad dates).
	ErrInvalidInput = errors.New("invalid input")
)

// Kinds of missing resources.
const (
	KindCase    = "case"
	KindImplant = "implant"
	KindRule    = "restriction"
)

// NotFoundError reports a missing case, implant or rule.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RestrictionError rejects a scan because Rule blocks the barcode for the case's plan.
type RestrictionError struct {
	Rule RestrictionRule
}

func (e *RestrictionError) Error() string {
	return fmt.Sprintf("barcode %s is not allowed for insurance plan %q", e.Rule.Barcode, e.Rule.InsurancePlanName)
}

// DuplicateRuleError reports an insert that hit the rule uniqueness constraint.
type DuplicateRuleError struct {
	Rule RestrictionRule
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("restriction for barcode %s and plan %q already exists", e.Rule.Barcode, e.Rule.InsurancePlanName)
}

func (e *DuplicateRuleError) Is(target error) bool { return target == ErrDuplicateRule }

// PersistenceError wraps a storage failure not covered by the other kinds.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it is nil or already typed.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateRule) || errors.Is(err, ErrConcurrencyConflict) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// SourceFailure is one upstream source that could not be read.
type SourceFailure struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (f SourceFailure) Error() string {
	return fmt.Sprintf("source %s: %v", f.Source, f.Err)
}

func (f SourceFailure) Unwrap() error { return f.Err }

// MarshalJSON renders the failure as {"source", "error"}.
func (f SourceFailure) MarshalJSON() ([]byte, error) {
	cause := ""
	if f.Err != nil {
		cause = f.Err.Error()
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Error  string `json:"error"`
	}{f.Source, cause})
}

// TotalFetchFailure is returned when every configured source failed.
type TotalFetchFailure struct {
	Failures []SourceFailure
}

func (e *TotalFetchFailure) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("all %d sources failed: %s", len(e.Failures), strings.Join(parts, "; "))
}
