// Package models holds the normalized records written to both stores.
package models

import "time"

// AttendanceEvent is one attendance mark for a user in a course or session.
type AttendanceEvent struct {
	ID        string
	UserID    string
	CourseID  string
	Status    string
	TsUTC     time.Time
	Version   int64
	UpdatedAt time.Time
	Source    string
}

// User is an application user profile.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	Version     int64
	UpdatedAt   time.Time
	Source      string
}

// Course is a course catalog entry.
type Course struct {
	ID           string
	Name         string
	Code         string
	DepartmentID string
	Version      int64
	UpdatedAt    time.Time
	Source       string
}

// GenericRecord is an opaque document mirrored into a *_mirror table.
type GenericRecord struct {
	ID        string
	Data      map[string]any
	Version   int64
	UpdatedAt time.Time
	Source    string
}

// Receipt acknowledges a committed upsert. Version is the persisted version.
type Receipt struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
}

// DeleteReceipt acknowledges a committed delete. Deleted is always true;
// deleting a missing record still succeeds.
type DeleteReceipt struct {
	ID      string
	Deleted bool
}

// Document returns the fields merged into the attendance document. The
// document is keyed by ID, so the id itself is not a field.
func (e AttendanceEvent) Document() map[string]any {
	return map[string]any{
		"userId":    e.UserID,
		"courseId":  e.CourseID,
		"status":    e.Status,
		"tsUtc":     e.TsUTC,
		"version":   e.Version,
		"updatedAt": e.UpdatedAt,
		"source":    e.Source,
	}
}

// Document fields for users.
func (u User) Document() map[string]any {
	return map[string]any{
		"email":       u.Email,
		"displayName": nullable(u.DisplayName),
		"role":        nullable(u.Role),
		"version":     u.Version,
		"updatedAt":   u.UpdatedAt,
		"source":      u.Source,
	}
}

// Document fields for courses.
func (c Course) Document() map[string]any {
	return map[string]any{
		"name":         c.Name,
		"code":         nullable(c.Code),
		"departmentId": nullable(c.DepartmentID),
		"version":      c.Version,
		"updatedAt":    c.UpdatedAt,
		"source":       c.Source,
	}
}

// Document merges the payload with the bookkeeping fields. Bookkeeping wins
// over payload keys of the same name.
func (g GenericRecord) Document() map[string]any {
	out := make(map[string]any, len(g.Data)+3)
	for k, v := range g.Data {
		out[k] = v
	}
	out["updatedAt"] = g.UpdatedAt
	out["version"] = g.Version
	out["source"] = g.Source
	return out
}

// nullable maps "" to nil so optional fields are stored as null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NullString is nullable for SQL arguments.
func NullString(s string) any {
	return nullable(s)
}
