// Package collections is the fixed allow-list of synchronizable collections.
// Every caller-supplied collection name is resolved here before any SQL is
// built or any store is touched.
package collections

import (
	"fmt"
	"sort"

	"github.com/lib/pq"

	dErrors "attendsync/pkg/domain-errors"
)

// Kind selects the write path for a collection.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindUser       Kind = "user"
	KindCourse     Kind = "course"
	KindGeneric    Kind = "generic"
)

// Collection names.
const (
	Attendance    = "attendance"
	Users         = "users"
	Courses       = "courses"
	Organizations = "organizations"
	Classes       = "classes"
	Sessions      = "sessions"
)

// Entry describes one allow-listed collection.
type Entry struct {
	Name     string
	Kind     Kind
	Table    string
	Document string

	quoted string
}

// QuotedTable is the relational table as a safe SQL identifier.
func (e Entry) QuotedTable() string {
	return e.quoted
}

// ValidateData checks a generic payload.
func (e Entry) ValidateData(data map[string]any) error {
	if len(data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "data must be a non-empty object")
	}
	return nil
}

var registry = build(
	Entry{Name: Attendance, Kind: KindAttendance, Table: "attendance_event", Document: "attendance"},
	Entry{Name: Users, Kind: KindUser, Table: "app_user", Document: "users"},
	Entry{Name: Courses, Kind: KindCourse, Table: "course", Document: "courses"},
	Entry{Name: Organizations, Kind: KindGeneric, Table: "organizations_mirror", Document: "organizations"},
	Entry{Name: Classes, Kind: KindGeneric, Table: "classes_mirror", Document: "classes"},
	Entry{Name: Sessions, Kind: KindGeneric, Table: "sessions_mirror", Document: "sessions"},
)

func build(entries ...Entry) map[string]Entry {
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if _, dup := out[e.Name]; dup {
			panic(fmt.Sprintf("collections: duplicate entry %q", e.Name))
		}
		e.quoted = pq.QuoteIdentifier(e.Table)
		out[e.Name] = e
	}
	return out
}

// Lookup resolves name against the allow-list.
func Lookup(name string) (Entry, error) {
	e, ok := registry[name]
	if !ok {
		return Entry{}, dErrors.New(dErrors.CodeUnsupportedCollection, "unsupported collection: "+name)
	}
	return e, nil
}

// LookupGeneric resolves name and rejects the typed entities, which have
// their own routes.
func LookupGeneric(name string) (Entry, error) {
	e, err := Lookup(name)
	if err != nil {
		return Entry{}, err
	}
	if e.Kind != KindGeneric {
		return Entry{}, dErrors.New(dErrors.CodeUnsupportedCollection, "unsupported collection: "+name)
	}
	return e, nil
}

// Core returns the typed collections, which a default backfill covers.
func Core() []string {
	return []string{Attendance, Users, Courses}
}

// Generic returns the passthrough collections in a stable order.
func Generic() []string {
	var names []string
	for name, e := range registry {
		if e.Kind == KindGeneric {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns every allow-listed name, typed collections first.
func All() []string {
	return append(Core(), Generic()...)
}
