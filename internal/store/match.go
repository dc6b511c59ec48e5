package store

import (
	"strings"
	"time"
)

// Matches reports whether doc satisfies every filter. A document that lacks
// a filtered field, or whose value cannot be compared with the filter value,
// does not match.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok || v == nil {
			return false
		}
		c, ok := Compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case Equal:
			if c != 0 {
				return false
			}
		case Less:
			if c >= 0 {
				return false
			}
		case LessEqual:
			if c > 0 {
				return false
			}
		case Greater:
			if c <= 0 {
				return false
			}
		case GreaterEqual:
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Compare orders two document values. Strings compare by byte order,
// numbers numerically and times chronologically. A string compared with a
// time is parsed as RFC 3339. Booleans only compare for equality (false
// sorts first). The second result is false when the values are not
// comparable.
func Compare(a, b any) (int, bool) {
	if ta, ok := a.(time.Time); ok {
		tb, ok := TimeValue(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if tb, ok := b.(time.Time); ok {
		ta, ok := TimeValue(a)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}

	if na, ok := number(a); ok {
		nb, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		}
		return 0, true
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}

	return 0, false
}

// TimeValue interprets a document value as a point in time. It accepts
// time.Time and RFC 3339 strings, which is how JSON-backed engines hand
// timestamps back.
func TimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// clone copies a document so callers cannot mutate engine state. Nested
// string and value slices are copied too.
func clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		switch s := v.(type) {
		case []string:
			out[k] = append([]string(nil), s...)
		case []any:
			out[k] = append([]any(nil), s...)
		default:
			out[k] = v
		}
	}
	return out
}
