// Package store is the relational side of the sync engine. All statements
// are parameterized; table names only ever come from the collections
// allow-list as pre-quoted identifiers.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"attendsync/internal/sync/collections"
	"attendsync/internal/sync/models"
	dErrors "attendsync/pkg/domain-errors"
	"attendsync/pkg/platform/sentinel"
	txcontext "attendsync/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const defaultTxTimeout = 5 * time.Second

var (
	attendanceColumns = []string{"id", "user_id", "course_id", "status", "ts_utc", "version", "updated_at", "source"}
	userColumns       = []string{"id", "email", "display_name", "role", "version", "updated_at", "source"}
	courseColumns     = []string{"id", "name", "code", "department_id", "version", "updated_at", "source"}
	genericColumns    = []string{"id", "data", "version", "updated_at", "source"}
)

// PostgresStore persists synchronized records in Postgres.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

// NewPostgres wraps db. A zero txTimeout uses the default of five seconds.
func NewPostgres(db *sql.DB, txTimeout time.Duration) *PostgresStore {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &PostgresStore{db: db, txTimeout: txTimeout}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

// RunInTx runs fn inside one transaction bound to the context passed to fn.
// The transaction is rolled back unless fn succeeds and the commit goes
// through. A failed commit is reported as sentinel.ErrCommitFailed.
// The transaction ends at the tx timeout or at ctx's deadline, whichever
// comes first.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", sentinel.ErrCommitFailed, err)
	}
	return nil
}

// LockVersion returns the stored version of id and locks the row for the
// rest of the transaction. A missing row has version 0.
func (s *PostgresStore) LockVersion(ctx context.Context, entry collections.Entry, id string) (int64, error) {
	query := `SELECT version FROM ` + entry.QuotedTable() + ` WHERE id = $1 FOR UPDATE`
	var stored int64
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock %s version: %w", entry.Name, err)
	}
	return stored, nil
}

// UpsertAttendance writes one attendance event and returns the persisted version.
func (s *PostgresStore) UpsertAttendance(ctx context.Context, entry collections.Entry, e models.AttendanceEvent) (int64, error) {
	return s.upsertOne(ctx, entry, attendanceColumns, attendanceRow(e))
}

// UpsertUser writes one user and returns the persisted version.
func (s *PostgresStore) UpsertUser(ctx context.Context, entry collections.Entry, u models.User) (int64, error) {
	return s.upsertOne(ctx, entry, userColumns, userRow(u))
}

// UpsertCourse writes one course and returns the persisted version.
func (s *PostgresStore) UpsertCourse(ctx context.Context, entry collections.Entry, c models.Course) (int64, error) {
	return s.upsertOne(ctx, entry, courseColumns, courseRow(c))
}

// UpsertGeneric writes one mirrored document and returns the persisted version.
func (s *PostgresStore) UpsertGeneric(ctx context.Context, entry collections.Entry, g models.GenericRecord) (int64, error) {
	row, err := genericRow(g)
	if err != nil {
		return 0, err
	}
	return s.upsertOne(ctx, entry, genericColumns, row)
}

func (s *PostgresStore) upsertOne(ctx context.Context, entry collections.Entry, columns []string, row []any) (int64, error) {
	query := upsertSQL(entry.QuotedTable(), columns, 1) + ` RETURNING version`
	var persisted int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, row...).Scan(&persisted); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", entry.Name, err)
	}
	return persisted, nil
}

// Delete removes id from the collection table. Deleting a missing row is
// not an error; the result reports whether a row existed.
func (s *PostgresStore) Delete(ctx context.Context, entry collections.Entry, id string) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM `+entry.QuotedTable()+` WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", entry.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s rows affected: %w", entry.Name, err)
	}
	return n > 0, nil
}

// BulkUpsertAttendance writes events with one multi-row statement.
func (s *PostgresStore) BulkUpsertAttendance(ctx context.Context, entry collections.Entry, events []models.AttendanceEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, attendanceRow(e))
	}
	return s.bulkUpsert(ctx, entry, attendanceColumns, rows)
}

// BulkUpsertUsers writes users with one multi-row statement.
func (s *PostgresStore) BulkUpsertUsers(ctx context.Context, entry collections.Entry, users []models.User) error {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow(u))
	}
	return s.bulkUpsert(ctx, entry, userColumns, rows)
}

// BulkUpsertCourses writes courses with one multi-row statement.
func (s *PostgresStore) BulkUpsertCourses(ctx context.Context, entry collections.Entry, courses []models.Course) error {
	rows := make([][]any, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, courseRow(c))
	}
	return s.bulkUpsert(ctx, entry, courseColumns, rows)
}

// BulkUpsertGeneric writes mirrored documents with one multi-row statement.
func (s *PostgresStore) BulkUpsertGeneric(ctx context.Context, entry collections.Entry, records []models.GenericRecord) error {
	rows := make([][]any, 0, len(records))
	for _, g := range records {
		row, err := genericRow(g)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return s.bulkUpsert(ctx, entry, genericColumns, rows)
}

func (s *PostgresStore) bulkUpsert(ctx context.Context, entry collections.Entry, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		args = append(args, row...)
	}
	if _, err := s.execer(ctx).ExecContext(ctx, upsertSQL(entry.QuotedTable(), columns, len(rows)), args...); err != nil {
		return fmt.Errorf("bulk upsert %s: %w", entry.Name, err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// upsertSQL builds INSERT ... ON CONFLICT (id) DO UPDATE for rows rows.
// The version column only ever moves forward.
func upsertSQL(table string, columns []string, rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
	sets := make([]string, 0, len(columns)-1)
	for _, col := range columns {
		switch col {
		case "id":
		case "version":
			sets = append(sets, "version = GREATEST("+table+".version, EXCLUDED.version)")
		default:
			sets = append(sets, col+" = EXCLUDED."+col)
		}
	}
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

func attendanceRow(e models.AttendanceEvent) []any {
	return []any{e.ID, e.UserID, e.CourseID, e.Status, e.TsUTC, e.Version, e.UpdatedAt, e.Source}
}

func userRow(u models.User) []any {
	return []any{u.ID, u.Email, models.NullString(u.DisplayName), models.NullString(u.Role), u.Version, u.UpdatedAt, u.Source}
}

func courseRow(c models.Course) []any {
	return []any{c.ID, c.Name, models.NullString(c.Code), models.NullString(c.DepartmentID), c.Version, c.UpdatedAt, c.Source}
}

func genericRow(g models.GenericRecord) ([]any, error) {
	data, err := json.Marshal(g.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", g.ID, err)
	}
	return []any{g.ID, data, g.Version, g.UpdatedAt, g.Source}, nil
}
