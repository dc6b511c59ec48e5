package records

import (
	"time"

	"github.com/beekhof/crm-records/internal/store"
)

// Helpers reading loosely typed document values back into record fields.
// Engines may hand back times as RFC 3339 strings and lists as []any.

func str(doc store.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

func timestamp(doc store.Document, key string) time.Time {
	t, _ := store.TimeValue(doc[key])
	return t
}

func stringList(doc store.Document, key string) []string {
	switch v := doc[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
