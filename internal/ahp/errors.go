package ahp

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures for callers that map them onto transport
// status codes.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindDegenerate   Kind = "degenerate_computation"
	KindIncomplete   Kind = "incomplete_data"
)

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ---- Invalid input ----

var (
	ErrInvalidElementCount    = &Error{Kind: KindInvalidInput, Code: "invalid_element_count", Message: "at least two elements are required"}
	ErrUnknownElement         = &Error{Kind: KindInvalidInput, Code: "unknown_element", Message: "element is not part of the element set"}
	ErrDuplicateElement       = &Error{Kind: KindInvalidInput, Code: "duplicate_element", Message: "element appears more than once"}
	ErrSelfComparison         = &Error{Kind: KindInvalidInput, Code: "self_comparison", Message: "an element cannot be compared with itself"}
	ErrInvalidComparisonValue = &Error{Kind: KindInvalidInput, Code: "invalid_comparison_value", Message: "comparison value outside the 1/9..9 scale"}
	ErrInvalidMatrix          = &Error{Kind: KindInvalidInput, Code: "invalid_matrix", Message: "matrix is not a positive reciprocal matrix"}
	ErrWeightsMismatch        = &Error{Kind: KindInvalidInput, Code: "weights_mismatch", Message: "weights are not aligned with the matrix elements"}
	ErrInvalidHierarchy       = &Error{Kind: KindInvalidInput, Code: "invalid_hierarchy", Message: "criteria tree is malformed"}
	ErrInvalidEvaluatorWeight = &Error{Kind: KindInvalidInput, Code: "invalid_evaluator_weight", Message: "evaluator weight must be a positive number"}
	ErrOutOfRange             = &Error{Kind: KindInvalidInput, Code: "out_of_range", Message: "value must lie in [0, 1]"}
	ErrInvalidBudget          = &Error{Kind: KindInvalidInput, Code: "invalid_budget", Message: "budget must be a non-negative number"}
	ErrInvalidBudgetItem      = &Error{Kind: KindInvalidInput, Code: "invalid_budget_item", Message: "budget item needs a unique id, positive cost and non-negative utility"}
	ErrConflictingConstraints = &Error{Kind: KindInvalidInput, Code: "conflicting_constraints", Message: "alternative is both mandatory and excluded"}
)

// ---- Degenerate computation ----

var (
	ErrDegenerateMatrix        = &Error{Kind: KindDegenerate, Code: "degenerate_matrix", Message: "matrix has a zero or non-finite denominator"}
	ErrUndefinedRedistribution = &Error{Kind: KindDegenerate, Code: "undefined_redistribution", Message: "remaining weight cannot be redistributed when the target already holds all of it"}
)

// ---- Incomplete data ----

var (
	ErrMissingLocalWeights      = &Error{Kind: KindIncomplete, Code: "missing_local_weights", Message: "internal criterion has no local weights for its children"}
	ErrIncompleteLeafCoverage   = &Error{Kind: KindIncomplete, Code: "incomplete_leaf_coverage", Message: "leaf criterion has no alternative weights"}
	ErrNoEvaluatorData          = &Error{Kind: KindIncomplete, Code: "no_evaluator_data", Message: "no evaluator scores supplied"}
	ErrInconsistentAlternatives = &Error{Kind: KindIncomplete, Code: "inconsistent_alternatives", Message: "evaluators scored different alternative sets"}
)

// KindOf returns the engine kind of err, or the empty string for errors that
// did not originate in the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the engine code of err, or the empty string.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
