// Package backfill seeds the relational store from the document store. It
// only ever reads documents; every relational write is a keyed upsert that
// keeps the larger version, so a run can be repeated safely.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"attendsync/internal/docstore"
	"attendsync/internal/platform/metrics"
	"attendsync/internal/sync/collections"
	"attendsync/internal/sync/models"
)

// MaxBatchSize caps the rows written by one statement.
const MaxBatchSize = 500

// Source streams documents out of the document store.
type Source interface {
	Stream(ctx context.Context, collection string, fn func(docstore.Document) error) error
}

// Sink writes batches into the relational store.
type Sink interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	BulkUpsertAttendance(ctx context.Context, entry collections.Entry, events []models.AttendanceEvent) error
	BulkUpsertUsers(ctx context.Context, entry collections.Entry, users []models.User) error
	BulkUpsertCourses(ctx context.Context, entry collections.Entry, courses []models.Course) error
	BulkUpsertGeneric(ctx context.Context, entry collections.Entry, records []models.GenericRecord) error
}

// CollectionReport counts one collection's documents.
type CollectionReport struct {
	Name      string `json:"name"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
}

// Report is the outcome of a run. After a failed batch it still holds the
// counts of everything committed before the failure.
type Report struct {
	Collections []CollectionReport `json:"collections"`
	Processed   int                `json:"processed"`
	Skipped     int                `json:"skipped"`
}

func (r *Report) add(c CollectionReport) {
	r.Collections = append(r.Collections, c)
	r.Processed += c.Processed
	r.Skipped += c.Skipped
}

// Job replays document collections into the relational store.
type Job struct {
	source    Source
	sink      Sink
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(j *Job)

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithBatchSize sets the rows per batch. Values outside 1..MaxBatchSize
// fall back to MaxBatchSize.
func WithBatchSize(n int) Option {
	return func(j *Job) {
		if n <= 0 || n > MaxBatchSize {
			n = MaxBatchSize
		}
		j.batchSize = n
	}
}

// WithClock sets the time used for documents that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// New constructs a Job.
func New(source Source, sink Sink, opts ...Option) (*Job, error) {
	if source == nil {
		return nil, errors.New("document source is required")
	}
	if sink == nil {
		return nil, errors.New("relational sink is required")
	}
	j := &Job{
		source:    source,
		sink:      sink,
		batchSize: MaxBatchSize,
		logger:    slog.Default(),
		tracer:    otel.Tracer("attendsync/internal/sync/backfill"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run backfills names in order. Every name is resolved against the
// allow-list before any document is read.
func (j *Job) Run(ctx context.Context, names []string) (*Report, error) {
	entries := make([]collections.Entry, 0, len(names))
	for _, name := range names {
		entry, err := collections.Lookup(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	report := &Report{}
	for _, entry := range entries {
		cr, err := j.runCollection(ctx, entry)
		report.add(cr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (j *Job) runCollection(ctx context.Context, entry collections.Entry) (CollectionReport, error) {
	cr := CollectionReport{Name: entry.Name}
	now := j.now().UTC()
	st := j.stagerFor(entry, now)

	flush := func(ctx context.Context) error {
		if st.pending() == 0 {
			return nil
		}
		n := st.pending()
		if err := j.flush(ctx, entry, st); err != nil {
			return err
		}
		cr.Processed += n
		j.metrics.AddBackfill(entry.Name, n, 0)
		return nil
	}

	err := j.source.Stream(ctx, entry.Document, func(doc docstore.Document) error {
		if err := st.stage(doc); err != nil {
			cr.Skipped++
			j.metrics.AddBackfill(entry.Name, 0, 1)
			j.logger.WarnContext(ctx, "skipping document",
				"collection", entry.Name,
				"id", doc.ID,
				"reason", err.Error(),
			)
			return nil
		}
		if st.size() >= j.batchSize {
			return flush(ctx)
		}
		return nil
	})
	if err == nil {
		err = flush(ctx)
	}

	j.logger.InfoContext(ctx, fmt.Sprintf("[%s] processed=%d skipped=%d", entry.Name, cr.Processed, cr.Skipped),
		"collection", entry.Name,
		"processed", cr.Processed,
		"skipped", cr.Skipped,
	)
	if err != nil {
		return cr, fmt.Errorf("backfill %s: %w", entry.Name, err)
	}
	return cr, nil
}

// flush writes the staged rows in one transaction.
func (j *Job) flush(ctx context.Context, entry collections.Entry, st stager) error {
	ctx, span := j.tracer.Start(ctx, "backfill.batch", trace.WithAttributes(
		attribute.String("sync.collection", entry.Name),
		attribute.Int("batch.rows", st.size()),
	))
	defer span.End()

	start := time.Now()
	err := j.sink.RunInTx(ctx, st.write)
	j.metrics.ObserveBackfillBatch(entry.Name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return err
	}
	st.reset()
	return nil
}

func (j *Job) stagerFor(entry collections.Entry, now time.Time) stager {
	switch entry.Kind {
	case collections.KindAttendance:
		return newBatch(entry, now, mapAttendance, j.sink.BulkUpsertAttendance)
	case collections.KindUser:
		return newBatch(entry, now, mapUser, j.sink.BulkUpsertUsers)
	case collections.KindCourse:
		return newBatch(entry, now, mapCourse, j.sink.BulkUpsertCourses)
	default:
		return newBatch(entry, now, mapGeneric, j.sink.BulkUpsertGeneric)
	}
}

// stager accumulates mapped rows for one collection.
type stager interface {
	// stage maps doc and adds it; a mapping error means the document is skipped.
	stage(doc docstore.Document) error
	// size is the number of distinct rows staged.
	size() int
	// pending is the number of documents staged, duplicates included.
	pending() int
	write(ctx context.Context) error
	reset()
}

type keyed interface {
	models.AttendanceEvent | models.User | models.Course | models.GenericRecord
}

// batch stages rows of one record type. A later document with an id already
// in the batch replaces the earlier row: one statement cannot upsert the same
// key twice.
type batch[T keyed] struct {
	entry   collections.Entry
	now     time.Time
	mapDoc  func(docstore.Document, time.Time) (T, error)
	writeFn func(context.Context, collections.Entry, []T) error

	rows  []T
	index map[string]int
	docs  int
}

func newBatch[T keyed](
	entry collections.Entry,
	now time.Time,
	mapDoc func(docstore.Document, time.Time) (T, error),
	writeFn func(context.Context, collections.Entry, []T) error,
) *batch[T] {
	return &batch[T]{entry: entry, now: now, mapDoc: mapDoc, writeFn: writeFn, index: map[string]int{}}
}

func (b *batch[T]) stage(doc docstore.Document) error {
	row, err := b.mapDoc(doc, b.now)
	if err != nil {
		return err
	}
	id := rowID(row)
	if i, dup := b.index[id]; dup {
		b.rows[i] = row
	} else {
		b.index[id] = len(b.rows)
		b.rows = append(b.rows, row)
	}
	b.docs++
	return nil
}

func (b *batch[T]) size() int    { return len(b.rows) }
func (b *batch[T]) pending() int { return b.docs }

func (b *batch[T]) write(ctx context.Context) error {
	return b.writeFn(ctx, b.entry, b.rows)
}

func (b *batch[T]) reset() {
	b.rows = b.rows[:0]
	clear(b.index)
	b.docs = 0
}

func rowID(row any) string {
	switch r := row.(type) {
	case models.AttendanceEvent:
		return r.ID
	case models.User:
		return r.ID
	case models.Course:
		return r.ID
	case models.GenericRecord:
		return r.ID
	}
	return ""
}
