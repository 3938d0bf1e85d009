// Package models defines the validated entities of the expenditure lifecycle
// and the factories that build them from raw rows.
package models

import (
	"fmt"
	"unicode/utf8"

	"github.com/farxc/envelopa-auditoria/internal/finutil"
	"github.com/farxc/envelopa-auditoria/internal/result"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// check is one field-level validation; it returns "" when the field is fine.
type check func() string

// runChecks applies checks in order and fails on the first violation.
func runChecks[T any](entity string, v T, checks ...check) result.Result[T] {
	for _, c := range checks {
		if msg := c(); msg != "" {
			return result.Errf[T](result.KindStructural, "%s invalid: %s", entity, msg)
		}
	}
	return result.Ok(v)
}

func requiredID(field string, id int64) check {
	return func() string {
		if id <= 0 {
			return fmt.Sprintf("%s is required", field)
		}
		return ""
	}
}

func requiredText(field, value string) check {
	return func() string {
		if err := validate.Var(value, "required"); err != nil {
			return fmt.Sprintf("%s is required", field)
		}
		return ""
	}
}

func maxLen(field, value string, limit int) check {
	return func() string {
		if err := validate.Var(value, fmt.Sprintf("max=%d", limit)); err != nil {
			return fmt.Sprintf("%s exceeds %d characters (got %d)", field, limit, utf8.RuneCountInString(value))
		}
		return ""
	}
}

func nonNegative(field string, v decimal.Decimal) check {
	return func() string {
		if v.IsNegative() {
			return fmt.Sprintf("%s must not be negative (got %s)", field, v.String())
		}
		return ""
	}
}

// maxMagnitude enforces the NUMERIC(15,2) bound on monetary fields.
func maxMagnitude(field string, v decimal.Decimal) check {
	return func() string {
		if v.Abs().GreaterThan(finutil.MaxNumeric15_2) {
			return fmt.Sprintf("%s exceeds NUMERIC(15,2) limit %s (got %s)", field, finutil.MaxNumeric15_2.String(), v.String())
		}
		return ""
	}
}

func structural[T any](entity string, err error) result.Result[T] {
	return result.Errf[T](result.KindStructural, "%s invalid: %v", entity, err)
}
