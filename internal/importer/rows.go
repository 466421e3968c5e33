package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/orms/orms/pkg/apperrors"
	"github.com/orms/orms/pkg/dates"
)

// record is one CSV data row keyed by header name. Empty cells are absent.
type record struct {
	table  string
	line   int
	values map[string]string
}

func newRecord(table string, line int, header, cells []string) record {
	values := make(map[string]string, len(header))
	for i, col := range header {
		if i >= len(cells) {
			break
		}
		if v := strings.TrimSpace(cells[i]); v != "" {
			values[col] = v
		}
	}
	return record{table: table, line: line, values: values}
}

func (r record) invalid(col, format string, args ...interface{}) error {
	return apperrors.Validation(r.table, col, format, args...)
}

func (r record) str(col string) string {
	return r.values[col]
}

func (r record) opt(col string) *string {
	v, ok := r.values[col]
	if !ok {
		return nil
	}
	return &v
}

func (r record) integer(col string) (int, error) {
	v, ok := r.values[col]
	if !ok {
		return 0, r.invalid(col, "%s is required", col)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, r.invalid(col, "%s is not an integer: %q", col, v)
	}
	return n, nil
}

func (r record) optInt(col string) (*int, error) {
	if _, ok := r.values[col]; !ok {
		return nil, nil
	}
	n, err := r.integer(col)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// intOr returns def when the cell is empty.
func (r record) intOr(col string, def int) (int, error) {
	n, err := r.optInt(col)
	if err != nil || n == nil {
		return def, err
	}
	return *n, nil
}

func (r record) number(col string) (float64, error) {
	v, ok := r.values[col]
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.invalid(col, "%s is not a number: %q", col, v)
	}
	return f, nil
}

func (r record) optNumber(col string) (*float64, error) {
	if _, ok := r.values[col]; !ok {
		return nil, nil
	}
	f, err := r.number(col)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r record) boolean(col string, def bool) (bool, error) {
	v, ok := r.values[col]
	if !ok {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y":
		return true, nil
	case "0", "false", "f", "no", "n":
		return false, nil
	}
	return false, r.invalid(col, "%s is not a boolean: %q", col, v)
}

func (r record) datetime(col string) (*time.Time, error) {
	t, err := dates.Optional(r.opt(col), dates.ParseDateTime)
	if err != nil {
		return nil, r.invalid(col, "%s is not a recognised date or time", col)
	}
	return t, nil
}

func (r record) date(col string) (*time.Time, error) {
	t, err := dates.Optional(r.opt(col), dates.ParseDate)
	if err != nil {
		return nil, r.invalid(col, "%s is not a recognised date", col)
	}
	return t, nil
}

// lookupKey folds a lookup name so "Checked In", "checked_in" and
// "checked-in" compare equal.
func lookupKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "-", "_", "-").Replace(s)
}
