package docstore

import (
	"math"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"attendsync/internal/sync/version"
)

// normalize converts driver-specific values into plain Go values so mapping
// code never depends on which backend produced a document.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC()
	case models.CustomDateTime:
		return t.Time.UTC()
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time.UTC()
	case models.RecordID:
		return version.String(t.ID)
	case *models.RecordID:
		if t == nil {
			return nil
		}
		return version.String(t.ID)
	case models.CustomNil, *models.CustomNil:
		return nil
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		return t.String()
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.M:
		return normalizeMap(t)
	case primitive.A:
		return normalizeSlice(t)
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[version.String(k)] = normalize(val)
		}
		return out
	case []any:
		return normalizeSlice(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalize(v)
	}
	return out
}
