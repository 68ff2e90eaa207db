package optimize

import (
	"fmt"
	"time"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/domain"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func isDateOperator(op string) bool {
	return op == domain.OpIn || op == domain.OpNotIn || domain.IsInequality(op)
}

// optimizeTypeDate coerces values to civil.Date. Comparing a date with
// False using an inequality matches nothing.
func optimizeTypeDate(_ *run, c *cond) (domain.Domain, error) {
	if !isDateOperator(c.op()) {
		return c.same()
	}
	value, err := mapValue(c.value(), toDate)
	if err != nil {
		return nil, c.fail(ErrCodeInvalidValue, "%v", err)
	}
	if value == false && domain.IsInequality(c.op()) {
		return domain.False, nil
	}
	return c.with(c.op(), value), nil
}

func toDate(v any) (any, bool, error) {
	switch x := v.(type) {
	case civil.DateTime:
		return x.Date, false, nil
	case civil.Date:
		return x, true, nil
	case bool:
		if !x {
			return false, true, nil
		}
	case string:
		if d, err := civil.ParseDate(x); err == nil {
			return d, true, nil
		}
		if dt, err := parseDateTime(x); err == nil {
			return dt.Date, false, nil
		}
		return nil, false, fmt.Errorf("cannot parse %q as a date", x)
	}
	return nil, false, fmt.Errorf("cannot cast %s into a date", domain.TypeName(v))
}

// optimizeTypeDatetime coerces values to civil.DateTime and rewrites
// comparisons to half-open intervals at the precision of the value: a day
// for dates, a second for datetimes.
//
//	dt >  2024-01-15  =>  dt >= 2024-01-16 00:00:00
//	dt <= 2024-01-15  =>  dt <  2024-01-16 00:00:00
//	dt in {v}         =>  v <= dt < v + 1s
func optimizeTypeDatetime(_ *run, c *cond) (domain.Domain, error) {
	op := c.op()
	if !isDateOperator(op) {
		return c.same()
	}
	value, err := mapValue(c.value(), toDateTime)
	if err != nil {
		return nil, c.fail(ErrCodeInvalidValue, "%v", err)
	}
	isDate := allDates(c.value())
	name := c.name()

	if domain.IsInequality(op) {
		dt, ok := value.(civil.DateTime)
		if !ok {
			return domain.False, nil
		}
		dt = truncateSecond(dt)
		delta := time.Second
		if isDate {
			delta = 24 * time.Hour
		}
		switch op {
		case domain.OpGT:
			next, ok := addDuration(dt, delta)
			if !ok {
				return domain.False, nil
			}
			return domain.Raw(name, domain.OpGE, next), nil
		case domain.OpLE:
			next, ok := addDuration(dt, delta)
			if !ok {
				return domain.Raw(name, domain.OpNotIn, domain.MustSet(false)), nil
			}
			return domain.Raw(name, domain.OpLT, next), nil
		}
		return c.with(op, dt), nil
	}

	set := value.(domain.Set)
	hasDateTime := false
	for _, v := range set.Values() {
		if _, ok := v.(civil.DateTime); ok {
			hasDateTime = true
			break
		}
	}
	if !hasDateTime {
		return c.with(op, set), nil
	}
	ranges := make([]domain.Domain, 0, set.Len())
	for _, v := range set.Values() {
		dt, ok := v.(civil.DateTime)
		if !ok {
			ranges = append(ranges, domain.Raw(name, domain.OpIn, domain.MustSet(v)))
			continue
		}
		dt = truncateSecond(dt)
		start := domain.Raw(name, domain.OpGE, dt)
		if end, ok := addDuration(dt, time.Second); ok {
			ranges = append(ranges, domain.And(start, domain.Raw(name, domain.OpLT, end)))
		} else {
			ranges = append(ranges, start)
		}
	}
	d := domain.Or(ranges...)
	if op == domain.OpNotIn {
		d = domain.Not(d)
	}
	return d, nil
}

func toDateTime(v any) (any, bool, error) {
	switch x := v.(type) {
	case civil.DateTime:
		return x, false, nil
	case civil.Date:
		return civil.DateTime{Date: x}, true, nil
	case bool:
		if !x {
			return false, true, nil
		}
	case string:
		if d, err := civil.ParseDate(x); err == nil {
			return civil.DateTime{Date: d}, true, nil
		}
		if dt, err := parseDateTime(x); err == nil {
			return dt, false, nil
		}
		return nil, false, fmt.Errorf("cannot parse %q as a datetime", x)
	}
	return nil, false, fmt.Errorf("cannot cast %s into a datetime", domain.TypeName(v))
}

// mapValue converts a scalar or every element of a Set.
func mapValue(v any, conv func(any) (any, bool, error)) (any, error) {
	if set, ok := v.(domain.Set); ok {
		values := make([]any, 0, set.Len())
		for _, item := range set.Values() {
			nv, _, err := conv(item)
			if err != nil {
				return nil, err
			}
			values = append(values, nv)
		}
		return domain.NewSet(values...)
	}
	nv, _, err := conv(v)
	return nv, err
}

// allDates reports whether every value has day precision.
func allDates(v any) bool {
	values := []any{v}
	if set, ok := v.(domain.Set); ok {
		values = set.Values()
	}
	for _, item := range values {
		if _, isDate, err := toDateTime(item); err != nil || !isDate {
			return false
		}
	}
	return true
}

func parseDateTime(s string) (civil.DateTime, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateTimeOf(t), nil
		}
	}
	return civil.ParseDateTime(s)
}

func truncateSecond(dt civil.DateTime) civil.DateTime {
	dt.Time.Nanosecond = 0
	return dt
}

// addDuration adds d, reporting false past the last representable second
// of year 9999.
func addDuration(dt civil.DateTime, d time.Duration) (civil.DateTime, bool) {
	next := civil.DateTimeOf(dt.In(time.UTC).Add(d))
	if next.Date.Year > 9999 {
		return civil.DateTime{}, false
	}
	return next, true
}
