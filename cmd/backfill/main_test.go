package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendsync/internal/sync/backfill"
	dErrors "attendsync/pkg/domain-errors"
)

func TestResolveCollections(t *testing.T) {
	t.Run("normalizes and dedupes", func(t *testing.T) {
		names, err := resolveCollections([]string{"Attendance", " users", "attendance"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"attendance", "users"}, names)
	})

	t.Run("also discovered appends passthrough collections", func(t *testing.T) {
		names, err := resolveCollections([]string{"users"}, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "classes", "organizations", "sessions"}, names)
	})

	t.Run("unknown collection fails", func(t *testing.T) {
		_, err := resolveCollections([]string{"users", "payments"}, false)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedCollection))
	})

	t.Run("empty selection fails", func(t *testing.T) {
		_, err := resolveCollections([]string{" , "}, false)
		assert.Error(t, err)
	})
}

func TestRunRejectsUnknownCollectionBeforeConnecting(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "--collections", "payments"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnsupportedCollection))
}

func TestPrintReport(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	printReport(cmd, &backfill.Report{
		Collections: []backfill.CollectionReport{{Name: "users", Processed: 9, Skipped: 1}},
		Processed:   9,
		Skipped:     1,
	}, false)

	assert.Equal(t, "[users] processed=9 skipped=1\ntotal processed=9 skipped=1\n", out.String())
}
