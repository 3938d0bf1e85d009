package models

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/finutil"
	"github.com/shopspring/decimal"
)

var ErrMissingColumn = errors.New("missing column")

// Row is one raw record keyed by column name, as returned by sqlx MapScan or
// read from a CSV export.
type Row map[string]any

func (r Row) lookup(col string) (any, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	if b, isBytes := v.([]byte); isBytes && len(strings.TrimSpace(string(b))) == 0 {
		return nil, false
	}
	return v, true
}

// Has reports whether col holds a non-empty value.
func (r Row) Has(col string) bool {
	_, ok := r.lookup(col)
	return ok
}

func (r Row) Int64(col string) (int64, error) {
	v, ok := r.lookup(col)
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrMissingColumn, col)
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("column %s: %v is not an integer", col, t)
		}
		return int64(t), nil
	case string:
		return parseInt(col, t)
	case []byte:
		return parseInt(col, string(t))
	default:
		return 0, fmt.Errorf("column %s: unsupported integer type %T", col, v)
	}
}

func parseInt(col, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not an integer", col, s)
	}
	return n, nil
}

func (r Row) String(col string) (string, error) {
	v, ok := r.lookup(col)
	if !ok {
		return "", fmt.Errorf("%w %s", ErrMissingColumn, col)
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case []byte:
		return strings.TrimSpace(string(t)), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		return "", fmt.Errorf("column %s: unsupported text type %T", col, v)
	}
}

// NullString returns an invalid NullString when col is absent or blank.
func (r Row) NullString(col string) (sql.NullString, error) {
	if !r.Has(col) {
		return sql.NullString{}, nil
	}
	s, err := r.String(col)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// NullInt64 returns an invalid NullInt64 when col is absent or blank.
func (r Row) NullInt64(col string) (sql.NullInt64, error) {
	if !r.Has(col) {
		return sql.NullInt64{}, nil
	}
	n, err := r.Int64(col)
	if err != nil {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: n, Valid: true}, nil
}

func (r Row) Decimal(col string) (decimal.Decimal, error) {
	v, ok := r.lookup(col)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %s", ErrMissingColumn, col)
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		return parseDecimal(col, t)
	case []byte:
		return parseDecimal(col, string(t))
	default:
		return decimal.Zero, fmt.Errorf("column %s: unsupported decimal type %T", col, v)
	}
}

func parseDecimal(col, s string) (decimal.Decimal, error) {
	d, err := finutil.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %q is not a valid decimal", col, s)
	}
	return d, nil
}

func (r Row) Time(col string) (time.Time, error) {
	v, ok := r.lookup(col)
	if !ok {
		return time.Time{}, fmt.Errorf("%w %s", ErrMissingColumn, col)
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(col, t)
	case []byte:
		return parseTime(col, string(t))
	default:
		return time.Time{}, fmt.Errorf("column %s: unsupported date type %T", col, v)
	}
}

func parseTime(col, s string) (time.Time, error) {
	t, err := finutil.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", col, err)
	}
	return t, nil
}

// rowReader reads columns in order and keeps the first coercion error.
type rowReader struct {
	row Row
	err error
}

func (rr *rowReader) int64(col string) int64 {
	if rr.err != nil {
		return 0
	}
	v, err := rr.row.Int64(col)
	rr.err = err
	return v
}

func (rr *rowReader) string(col string) string {
	if rr.err != nil {
		return ""
	}
	v, err := rr.row.String(col)
	rr.err = err
	return v
}

// firstString reads the first present column among cols.
func (rr *rowReader) firstString(cols ...string) string {
	for _, col := range cols {
		if rr.row.Has(col) {
			return rr.string(col)
		}
	}
	return rr.string(cols[0])
}

func (rr *rowReader) nullString(col string) sql.NullString {
	if rr.err != nil {
		return sql.NullString{}
	}
	v, err := rr.row.NullString(col)
	rr.err = err
	return v
}

func (rr *rowReader) nullInt64(col string) sql.NullInt64 {
	if rr.err != nil {
		return sql.NullInt64{}
	}
	v, err := rr.row.NullInt64(col)
	rr.err = err
	return v
}

func (rr *rowReader) decimal(col string) decimal.Decimal {
	if rr.err != nil {
		return decimal.Zero
	}
	v, err := rr.row.Decimal(col)
	rr.err = err
	return v
}

func (rr *rowReader) time(col string) time.Time {
	if rr.err != nil {
		return time.Time{}
	}
	v, err := rr.row.Time(col)
	rr.err = err
	return v
}
