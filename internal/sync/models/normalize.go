package models

import (
	"strings"

	dErrors "attendsync/pkg/domain-errors"
)

// Status defaults for attendance events without an explicit status.
const (
	StatusPresent = "present"
	StatusUnknown = "unknown"
)

// Normalize trims fields, applies defaultStatus and checks mandatory fields.
func (e *AttendanceEvent) Normalize(defaultStatus string) error {
	e.ID = strings.TrimSpace(e.ID)
	e.UserID = strings.TrimSpace(e.UserID)
	e.CourseID = strings.TrimSpace(e.CourseID)
	e.Status = strings.TrimSpace(e.Status)
	if e.Status == "" {
		e.Status = defaultStatus
	}
	if e.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if e.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if e.CourseID == "" {
		return dErrors.New(dErrors.CodeValidation, "courseId or sessionId is required")
	}
	return nil
}

// Normalize trims fields, lower-cases the email and checks mandatory fields.
func (u *User) Normalize() error {
	u.ID = strings.TrimSpace(u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	u.Role = strings.TrimSpace(u.Role)
	if u.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if u.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return nil
}

// Normalize trims fields and checks mandatory fields.
func (c *Course) Normalize() error {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.TrimSpace(c.Code)
	c.DepartmentID = strings.TrimSpace(c.DepartmentID)
	if c.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if c.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// Normalize trims the id and requires a non-empty payload.
func (g *GenericRecord) Normalize() error {
	g.ID = strings.TrimSpace(g.ID)
	if g.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	if len(g.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "data must be a non-empty object")
	}
	return nil
}
