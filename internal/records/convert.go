package records

import (
	"fmt"
	"math"
	"time"

	"github.com/golang-sql/civil"

	"github.com/roach88/domex/internal/schema"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// convert turns a loosely typed value (as decoded from YAML or given by a
// caller) into the domain form of the field's type. set is false when the
// value means "unset".
func convert(f *schema.Field, v any) (value any, set bool, err error) {
	if !f.Store {
		return nil, false, fmt.Errorf("field %s is not stored", f)
	}
	if v == nil {
		return nil, false, nil
	}
	if b, ok := v.(bool); ok && !b && f.Type != schema.Boolean {
		return nil, false, nil
	}

	switch f.Type {
	case schema.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, false, fmt.Errorf("field %s: expected a boolean, got %T", f, v)
		}
		return b, true, nil

	case schema.Integer, schema.Many2one:
		n, ok := toInt(v)
		if !ok {
			return nil, false, fmt.Errorf("field %s: expected an integer, got %v", f, v)
		}
		return n, true, nil

	case schema.Float, schema.Monetary:
		switch x := v.(type) {
		case float64:
			return x, true, nil
		case float32:
			return float64(x), true, nil
		}
		n, ok := toInt(v)
		if !ok {
			return nil, false, fmt.Errorf("field %s: expected a number, got %v", f, v)
		}
		return float64(n), true, nil

	case schema.Char, schema.Text, schema.HTML, schema.Selection:
		return convertText(f, v)

	case schema.Binary:
		switch x := v.(type) {
		case string:
			return x, true, nil
		case []byte:
			return string(x), true, nil
		}
		return nil, false, fmt.Errorf("field %s: expected binary content, got %T", f, v)

	case schema.Date:
		switch x := v.(type) {
		case civil.Date:
			return x, true, nil
		case time.Time:
			return civil.DateOf(x), true, nil
		case string:
			d, err := civil.ParseDate(x)
			if err != nil {
				return nil, false, fmt.Errorf("field %s: %w", f, err)
			}
			return d, true, nil
		}
		return nil, false, fmt.Errorf("field %s: expected a date, got %T", f, v)

	case schema.Datetime:
		switch x := v.(type) {
		case civil.DateTime:
			return x, true, nil
		case time.Time:
			return civil.DateTimeOf(x.UTC()), true, nil
		case string:
			dt, err := parseDateTime(x)
			if err != nil {
				return nil, false, fmt.Errorf("field %s: %w", f, err)
			}
			return dt, true, nil
		}
		return nil, false, fmt.Errorf("field %s: expected a datetime, got %T", f, v)

	case schema.Many2many:
		items, ok := v.([]any)
		if !ok {
			if ids, ok := v.([]int64); ok {
				return ids, len(ids) > 0, nil
			}
			return nil, false, fmt.Errorf("field %s: expected a list of ids, got %T", f, v)
		}
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			id, ok := toInt(item)
			if !ok {
				return nil, false, fmt.Errorf("field %s: invalid id %v", f, item)
			}
			ids = append(ids, id)
		}
		return ids, len(ids) > 0, nil

	case schema.One2many:
		return nil, false, fmt.Errorf("field %s: one2many values come from %s", f, f.InverseName)
	}
	return nil, false, fmt.Errorf("field %s: unsupported type %s", f, f.Type)
}

func convertText(f *schema.Field, v any) (any, bool, error) {
	switch x := v.(type) {
	case string:
		if f.Translate {
			return map[string]string{DefaultLang: x}, true, nil
		}
		return x, true, nil
	case map[string]any:
		if !f.Translate {
			return nil, false, fmt.Errorf("field %s is not translated", f)
		}
		out := make(map[string]string, len(x))
		for lang, s := range x {
			str, ok := s.(string)
			if !ok {
				return nil, false, fmt.Errorf("field %s: translation %s is not a string", f, lang)
			}
			out[lang] = str
		}
		return out, true, nil
	case map[string]string:
		if !f.Translate {
			return nil, false, fmt.Errorf("field %s is not translated", f)
		}
		return x, true, nil
	}
	return nil, false, fmt.Errorf("field %s: expected text, got %T", f, v)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}
	return 0, false
}

func parseDateTime(s string) (civil.DateTime, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateTimeOf(t.UTC()), nil
		}
	}
	if d, err := civil.ParseDate(s); err == nil {
		return civil.DateTime{Date: d}, nil
	}
	return civil.ParseDateTime(s)
}
