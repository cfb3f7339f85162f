// Package filter compiles user-chosen search criteria into parameterized SQL predicates.
package filter

import (
	"errors"
	"fmt"
)

// Operator is one of the fixed search operators.
type Operator string

const (
	StartsWith  Operator = "starts_with"
	Contains    Operator = "contains"
	Equals      Operator = "equals"
	DateExact   Operator = "date_exact"
	DateByMonth Operator = "date_by_month"
	DateByYear  Operator = "date_by_year"
)

// Operators lists every supported operator.
func Operators() []Operator {
	return []Operator{StartsWith, Contains, Equals, DateExact, DateByMonth, DateByYear}
}

func (o Operator) isText() bool {
	return o == StartsWith || o == Contains || o == Equals
}

func (o Operator) isDate() bool {
	return o == DateExact || o == DateByMonth || o == DateByYear
}

// Criterion is a single (field, operator, value) condition.
// Value2 is reserved for range operators and ignored by the current set.
type Criterion struct {
	Field    string
	Operator Operator
	Value    string
	Value2   string
}

// Path distinguishes the single-field search from the composite one.
type Path int

const (
	Simple Path = iota
	Composite
)

func (p Path) String() string {
	if p == Composite {
		return "composite"
	}
	return "simple"
}

// CompiledQuery is an AND-joined predicate with '?' placeholders and the
// values bound to them, in criteria order.
type CompiledQuery struct {
	Where string
	Args  []any
}

// ToSql lets a CompiledQuery be passed straight to a squirrel builder.
func (q CompiledQuery) ToSql() (string, []any, error) {
	if q.Where == "" {
		return "", nil, errors.New("empty compiled query")
	}
	return q.Where, q.Args, nil
}

// Reason classifies why criteria were rejected.
type Reason string

const (
	ReasonUnknownField         Reason = "unknown_field"
	ReasonUnknownOperator      Reason = "unknown_operator"
	ReasonOperatorMismatch     Reason = "operator_mismatch"
	ReasonInvalidValue         Reason = "invalid_value"
	ReasonInsufficientCriteria Reason = "insufficient_criteria"
	ReasonTooManyCriteria      Reason = "too_many_criteria"
)

// ErrRejected is wrapped by every Rejection.
var ErrRejected = errors.New("criteria rejected")

// Rejection is returned by Compile when the criteria cannot be compiled.
// Index is the position of the offending criterion, or -1 when the set as a
// whole was refused.
type Rejection struct {
	Reason Reason
	Index  int
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Index < 0 {
		return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
	}
	return fmt.Sprintf("criterion %d (%s): %s: %s", r.Index+1, r.Field, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return ErrRejected }

// RejectionReason extracts the reason from err, if it is a Rejection.
func RejectionReason(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}
