package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeMongoValues(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	oid := primitive.NewObjectID()

	got := normalize(bson.M{
		"capturedAt": primitive.NewDateTimeFromTime(at),
		"ownerId":    oid,
		"count":      int32(7),
		"nested":     bson.D{{Key: "when", Value: primitive.NewDateTimeFromTime(at)}},
		"tags":       bson.A{"a", int32(1)},
	}).(map[string]any)

	assert.True(t, at.Equal(got["capturedAt"].(time.Time)))
	assert.Equal(t, oid.Hex(), got["ownerId"])
	assert.Equal(t, int64(7), got["count"])

	nested, ok := got["nested"].(map[string]any)
	require.True(t, ok)
	assert.True(t, at.Equal(nested["when"].(time.Time)))
	assert.Equal(t, []any{"a", int64(1)}, got["tags"])
}

func TestNormalizeSurrealValues(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 3600))
	rid := models.NewRecordID("users", "u1")

	got := normalize(map[string]any{
		"updatedAt": models.CustomDateTime{Time: at},
		"owner":     &rid,
		"version":   uint64(4),
		"extra":     map[any]any{"k": "v"},
	}).(map[string]any)

	ts := got["updatedAt"].(time.Time)
	assert.True(t, at.Equal(ts))
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, "u1", got["owner"])
	assert.Equal(t, int64(4), got["version"])
	assert.Equal(t, map[string]any{"k": "v"}, got["extra"])
}

func TestSurrealDocumentStripsRecordID(t *testing.T) {
	rid := models.NewRecordID("courses", "c9")
	doc := surrealDocument(map[string]any{"id": rid, "name": "Physics"})

	assert.Equal(t, "c9", doc.ID)
	assert.Equal(t, map[string]any{"name": "Physics"}, doc.Fields)
}

func TestToSurrealWrapsTimes(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	got := toSurreal(map[string]any{
		"updatedAt": at,
		"meta":      map[string]any{"seenAt": at},
		"status":    "present",
	})

	dt, ok := got["updatedAt"].(*models.CustomDateTime)
	require.True(t, ok)
	assert.True(t, at.Equal(dt.Time))
	_, ok = got["meta"].(map[string]any)["seenAt"].(*models.CustomDateTime)
	assert.True(t, ok)
	assert.Equal(t, "present", got["status"])
}
