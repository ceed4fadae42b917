package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"attendsync/internal/sync/models"
	"attendsync/internal/sync/version"
	dErrors "attendsync/pkg/domain-errors"
)

// Payloads are accepted in camelCase and snake_case. When both spellings
// are sent, the first key listed wins.
var (
	userIDKeys       = []string{"userId", "user_id"}
	courseIDKeys     = []string{"courseId", "course_id", "sessionId", "session_id"}
	tsKeys           = []string{"tsUtc", "ts_utc"}
	displayNameKeys  = []string{"displayName", "display_name"}
	departmentIDKeys = []string{"departmentId", "department_id"}
)

// payload is a decoded JSON object with numbers kept as json.Number.
type payload map[string]any

func decodePayload(data []byte) (payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body must be a JSON object")
	}
	if p == nil {
		p = payload{}
	}
	return p, nil
}

// text returns the first non-empty value among keys. Numbers are accepted
// for identifiers; anything else that is not a string is rejected.
func (p payload) text(keys ...string) (string, error) {
	v, ok := version.First(p, keys...)
	if !ok {
		return "", nil
	}
	switch v.(type) {
	case string, json.Number:
		return version.String(v), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, keys[0]+" must be a string")
	}
}

// suppliedVersion returns the supplied version. Absent, zero and negative values
// all mean "not supplied".
func (p payload) suppliedVersion() (int64, error) {
	v, ok := version.First(p, "version")
	if !ok {
		return 0, nil
	}
	n, isInt := version.AsInteger(v)
	if !isInt {
		return 0, dErrors.New(dErrors.CodeValidation, "version must be an integer")
	}
	if n > version.MaxSupplied {
		return 0, dErrors.New(dErrors.CodeValidation, "version is too large")
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func (p payload) timestamp(keys ...string) (time.Time, error) {
	v, ok := version.First(p, keys...)
	if !ok {
		return time.Time{}, nil
	}
	t, valid := version.ParseTime(v)
	if !valid {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, keys[0]+" must be a timestamp")
	}
	return t, nil
}

type textField struct {
	dst  *string
	keys []string
}

// textFields fills each dst in order, stopping at the first error.
func (p payload) textFields(fields ...textField) error {
	for _, f := range fields {
		s, err := p.text(f.keys...)
		if err != nil {
			return err
		}
		*f.dst = s
	}
	return nil
}

// plain replaces json.Number with int64 or float64 throughout v so document
// stores receive numbers rather than numeric strings.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, inner := range t {
			t[k] = plain(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = plain(inner)
		}
		return t
	default:
		return v
	}
}

// AttendanceRequest is the body of POST /sync/attendance/upsert.
type AttendanceRequest struct {
	ID       string
	UserID   string
	CourseID string
	Status   string
	TsUTC    time.Time
	Version  int64
}

func (r *AttendanceRequest) UnmarshalJSON(data []byte) error {
	p, err := decodePayload(data)
	if err != nil {
		return err
	}
	err = p.textFields(
		textField{&r.ID, []string{"id"}},
		textField{&r.UserID, userIDKeys},
		textField{&r.CourseID, courseIDKeys},
		textField{&r.Status, []string{"status"}},
	)
	if err != nil {
		return err
	}
	if r.TsUTC, err = p.timestamp(tsKeys...); err != nil {
		return err
	}
	r.Version, err = p.suppliedVersion()
	return err
}

// Model converts the request into the record the service writes.
func (r *AttendanceRequest) Model() models.AttendanceEvent {
	return models.AttendanceEvent{
		ID:       r.ID,
		UserID:   r.UserID,
		CourseID: r.CourseID,
		Status:   r.Status,
		TsUTC:    r.TsUTC,
		Version:  r.Version,
	}
}

func (r *AttendanceRequest) Validate() error {
	m := r.Model()
	return m.Normalize(models.StatusPresent)
}

// UserRequest is the body of POST /sync/users/upsert.
type UserRequest struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	Version     int64
}

func (r *UserRequest) UnmarshalJSON(data []byte) error {
	p, err := decodePayload(data)
	if err != nil {
		return err
	}
	err = p.textFields(
		textField{&r.ID, []string{"id"}},
		textField{&r.Email, []string{"email"}},
		textField{&r.DisplayName, displayNameKeys},
		textField{&r.Role, []string{"role"}},
	)
	if err != nil {
		return err
	}
	r.Version, err = p.suppliedVersion()
	return err
}

func (r *UserRequest) Model() models.User {
	return models.User{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        r.Role,
		Version:     r.Version,
	}
}

func (r *UserRequest) Validate() error {
	m := r.Model()
	return m.Normalize()
}

// CourseRequest is the body of POST /sync/courses/upsert.
type CourseRequest struct {
	ID           string
	Name         string
	Code         string
	DepartmentID string
	Version      int64
}

func (r *CourseRequest) UnmarshalJSON(data []byte) error {
	p, err := decodePayload(data)
	if err != nil {
		return err
	}
	err = p.textFields(
		textField{&r.ID, []string{"id"}},
		textField{&r.Name, []string{"name"}},
		textField{&r.Code, []string{"code"}},
		textField{&r.DepartmentID, departmentIDKeys},
	)
	if err != nil {
		return err
	}
	r.Version, err = p.suppliedVersion()
	return err
}

func (r *CourseRequest) Model() models.Course {
	return models.Course{
		ID:           r.ID,
		Name:         r.Name,
		Code:         r.Code,
		DepartmentID: r.DepartmentID,
		Version:      r.Version,
	}
}

func (r *CourseRequest) Validate() error {
	m := r.Model()
	return m.Normalize()
}

// GenericRequest is the body of POST /sync/{collection}/upsert.
type GenericRequest struct {
	ID      string
	Data    map[string]any
	Version int64
}

func (r *GenericRequest) UnmarshalJSON(data []byte) error {
	p, err := decodePayload(data)
	if err != nil {
		return err
	}
	if r.ID, err = p.text("id"); err != nil {
		return err
	}
	if raw, ok := p["data"]; ok && raw != nil {
		obj, isObject := raw.(map[string]any)
		if !isObject {
			return dErrors.New(dErrors.CodeValidation, "data must be a non-empty object")
		}
		r.Data = plain(obj).(map[string]any)
	}
	r.Version, err = p.suppliedVersion()
	return err
}

func (r *GenericRequest) Model() models.GenericRecord {
	return models.GenericRecord{ID: r.ID, Data: r.Data, Version: r.Version}
}

func (r *GenericRequest) Validate() error {
	m := r.Model()
	return m.Normalize()
}

// UpsertResponse acknowledges a committed upsert.
type UpsertResponse struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeleteResponse acknowledges a committed delete.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func toUpsertResponse(r *models.Receipt) UpsertResponse {
	return UpsertResponse{ID: r.ID, Version: r.Version, UpdatedAt: r.UpdatedAt}
}
