// Package result implements the two-state outcome value used to carry
// failures through the audit pipeline. A Result is either a success holding a
// value or a failure holding a *Failure; chaining with Bind or Then stops at
// the first failure.
package result

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindStructural marks malformed or missing fields on raw rows.
	KindStructural
	// KindInvariant marks cross-reference corruption caught while building aggregates.
	KindInvariant
	// KindRule marks a business-rule violation.
	KindRule
	// KindFetch marks errors coming from the data source.
	KindFetch
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindStructural: "structural",
	KindInvariant:  "invariant",
	KindRule:       "rule",
	KindFetch:      "fetch",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Failure is the error side of a Result.
type Failure struct {
	Kind    Kind
	Rule    string
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// WithRule returns a copy of f tagged with the name of the rule that produced it.
func (f *Failure) WithRule(name string) *Failure {
	cp := *f
	cp.Rule = name
	return &cp
}

type Result[T any] struct {
	value   T
	failure *Failure
}

// Unit is the value carried by results that only signal pass or fail.
type Unit struct{}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// OkUnit is the passing outcome of a rule.
func OkUnit() Result[Unit] {
	return Result[Unit]{}
}

func Err[T any](message string) Result[T] {
	return Result[T]{failure: &Failure{Kind: KindUnknown, Message: message}}
}

func Errf[T any](kind Kind, format string, args ...any) Result[T] {
	return Result[T]{failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Fail builds a failed Result from an existing failure, typically to move a
// failure from one value type to another.
func Fail[T any](f *Failure) Result[T] {
	if f == nil {
		panic("result: Fail called with nil failure")
	}
	return Result[T]{failure: f}
}

// FromError turns a Go error into a failed Result. A *Failure anywhere in the
// chain keeps its own kind; other errors are classified as kind.
func FromError[T any](kind Kind, err error) Result[T] {
	if err == nil {
		panic("result: FromError called with nil error")
	}
	var f *Failure
	if errors.As(err, &f) {
		return Result[T]{failure: f}
	}
	return Result[T]{failure: &Failure{Kind: kind, Message: err.Error()}}
}

func (r Result[T]) IsOk() bool  { return r.failure == nil }
func (r Result[T]) IsErr() bool { return r.failure != nil }

// Value returns the success value. Calling it on a failure panics.
func (r Result[T]) Value() T {
	if r.failure != nil {
		panic(fmt.Sprintf("result: Value called on failure: %s", r.failure.Message))
	}
	return r.value
}

// Err returns the failure message. Calling it on a success panics.
func (r Result[T]) Err() string {
	if r.failure == nil {
		panic("result: Err called on success")
	}
	return r.failure.Message
}

// Failure returns the failure, or nil on success.
func (r Result[T]) Failure() *Failure {
	return r.failure
}

func (r Result[T]) Kind() Kind {
	if r.failure == nil {
		return KindUnknown
	}
	return r.failure.Kind
}

// Unwrap converts the Result into Go's value/error pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}

// Then chains a step that keeps the value type.
func (r Result[T]) Then(fn func(T) Result[T]) Result[T] {
	if r.failure != nil {
		return r
	}
	return fn(r.value)
}

// Bind runs fn on the success value; a failure is passed through without
// calling fn.
func Bind[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.failure != nil {
		return Result[U]{failure: r.failure}
	}
	return fn(r.value)
}

// Map applies a plain transformation. A panic raised by fn becomes an
// invariant failure carrying the panic message.
func Map[T, U any](r Result[T], fn func(T) U) (out Result[U]) {
	if r.failure != nil {
		return Result[U]{failure: r.failure}
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = Result[U]{failure: &Failure{Kind: KindInvariant, Message: panicMessage(rec)}}
		}
	}()
	return Ok(fn(r.value))
}

// Collect gathers a list of results into one, stopping at the first failure.
func Collect[T any](rs []Result[T]) Result[[]T] {
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		if r.failure != nil {
			return Result[[]T]{failure: r.failure}
		}
		out = append(out, r.value)
	}
	return Ok(out)
}

func panicMessage(rec any) string {
	switch v := rec.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
