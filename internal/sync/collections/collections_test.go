package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attendsync/pkg/domain-errors"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		table  string
		quoted string
	}{
		{Attendance, KindAttendance, "attendance_event", `"attendance_event"`},
		{Users, KindUser, "app_user", `"app_user"`},
		{Courses, KindCourse, "course", `"course"`},
		{Organizations, KindGeneric, "organizations_mirror", `"organizations_mirror"`},
		{Classes, KindGeneric, "classes_mirror", `"classes_mirror"`},
		{Sessions, KindGeneric, "sessions_mirror", `"sessions_mirror"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.table, e.Table)
			assert.Equal(t, tt.quoted, e.QuotedTable())
		})
	}
}

func TestLookupRejectsUnknownNames(t *testing.T) {
	for _, name := range []string{"widgets", "", "users; DROP TABLE app_user", "Users", "app_user"} {
		_, err := Lookup(name)
		require.Error(t, err, name)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedCollection), name)
	}
}

func TestLookupGeneric(t *testing.T) {
	_, err := LookupGeneric(Classes)
	require.NoError(t, err)

	_, err = LookupGeneric(Users)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedCollection))
}

func TestValidateData(t *testing.T) {
	e, err := Lookup(Sessions)
	require.NoError(t, err)

	assert.True(t, dErrors.HasCode(e.ValidateData(nil), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(e.ValidateData(map[string]any{}), dErrors.CodeValidation))
	assert.NoError(t, e.ValidateData(map[string]any{"title": "Week 1"}))
}

func TestNameSets(t *testing.T) {
	assert.Equal(t, []string{Attendance, Users, Courses}, Core())
	assert.Equal(t, []string{Classes, Organizations, Sessions}, Generic())
	assert.Len(t, All(), 6)
}
