package backfill

import (
	"fmt"
	"strings"
	"time"

	"attendsync/internal/docstore"
	"attendsync/internal/sync/models"
	"attendsync/internal/sync/version"
)

// Alias lists in priority order.
var (
	userIDKeys       = []string{"userId", "user_id"}
	courseIDKeys     = []string{"courseId", "course_id", "sessionId", "session_id"}
	tsKeys           = []string{"tsUtc", "ts_utc", "capturedAt", "captured_at", "timestamp"}
	updatedAtKeys    = []string{"updatedAt", "updated_at"}
	updatedAtAltKeys = []string{"tsUtc", "ts_utc"}
	displayNameKeys  = []string{"displayName", "display_name"}
	departmentIDKeys = []string{"departmentId", "department_id"}
)

// bookkeepingKeys are stripped from generic payloads; the row carries them
// in dedicated columns.
var bookkeepingKeys = map[string]bool{
	"id":         true,
	"version":    true,
	"updatedAt":  true,
	"updated_at": true,
	"source":     true,
}

// firstTime returns the first alias that holds a parseable instant. An epoch
// number past the year 9999 is an error, not a missing value.
func firstTime(fields map[string]any, keys ...string) (time.Time, bool, error) {
	for _, k := range keys {
		v := fields[k]
		if t, ok := version.ParseTime(v); ok {
			return t, true, nil
		}
		if version.BeyondRange(v) {
			return time.Time{}, false, fmt.Errorf("%s is out of range: %v", k, v)
		}
	}
	return time.Time{}, false, nil
}

func docVersion(fields map[string]any) int64 {
	if v, ok := version.ParseVersion(fields["version"]); ok {
		return v
	}
	return 1
}

func docUpdatedAt(fields map[string]any, now time.Time) (time.Time, error) {
	for _, keys := range [][]string{updatedAtKeys, updatedAtAltKeys} {
		t, ok, err := firstTime(fields, keys...)
		if err != nil || ok {
			return t, err
		}
	}
	return now.UTC(), nil
}

func docID(doc docstore.Document) string {
	if id := strings.TrimSpace(doc.ID); id != "" {
		return id
	}
	return version.FirstString(doc.Fields, "id")
}

func mapAttendance(doc docstore.Document, now time.Time) (models.AttendanceEvent, error) {
	f := doc.Fields
	updatedAt, err := docUpdatedAt(f, now)
	if err != nil {
		return models.AttendanceEvent{}, err
	}
	ts, ok, err := firstTime(f, tsKeys...)
	if err != nil {
		return models.AttendanceEvent{}, err
	}
	if !ok {
		ts = updatedAt
	}
	e := models.AttendanceEvent{
		ID:        docID(doc),
		UserID:    version.FirstString(f, userIDKeys...),
		CourseID:  version.FirstString(f, courseIDKeys...),
		Status:    version.FirstString(f, "status"),
		TsUTC:     ts,
		Version:   docVersion(f),
		UpdatedAt: updatedAt,
		Source:    version.SourceBackfill,
	}
	err = e.Normalize(models.StatusUnknown)
	return e, err
}

func mapUser(doc docstore.Document, now time.Time) (models.User, error) {
	f := doc.Fields
	updatedAt, err := docUpdatedAt(f, now)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:          docID(doc),
		Email:       version.FirstString(f, "email"),
		DisplayName: version.FirstString(f, displayNameKeys...),
		Role:        version.FirstString(f, "role"),
		Version:     docVersion(f),
		UpdatedAt:   updatedAt,
		Source:      version.SourceBackfill,
	}
	err = u.Normalize()
	return u, err
}

func mapCourse(doc docstore.Document, now time.Time) (models.Course, error) {
	f := doc.Fields
	updatedAt, err := docUpdatedAt(f, now)
	if err != nil {
		return models.Course{}, err
	}
	c := models.Course{
		ID:           docID(doc),
		Name:         version.FirstString(f, "name"),
		Code:         version.FirstString(f, "code"),
		DepartmentID: version.FirstString(f, departmentIDKeys...),
		Version:      docVersion(f),
		UpdatedAt:    updatedAt,
		Source:       version.SourceBackfill,
	}
	err = c.Normalize()
	return c, err
}

func mapGeneric(doc docstore.Document, now time.Time) (models.GenericRecord, error) {
	updatedAt, err := docUpdatedAt(doc.Fields, now)
	if err != nil {
		return models.GenericRecord{}, err
	}
	data := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		if !bookkeepingKeys[k] {
			data[k] = v
		}
	}
	g := models.GenericRecord{
		ID:        docID(doc),
		Data:      data,
		Version:   docVersion(doc.Fields),
		UpdatedAt: updatedAt,
		Source:    version.SourceBackfill,
	}
	err = g.Normalize()
	return g, err
}
