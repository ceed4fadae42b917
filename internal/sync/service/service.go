package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"attendsync/internal/platform/metrics"
	"attendsync/internal/reconcile"
	"attendsync/internal/sync/collections"
	"attendsync/internal/sync/models"
	"attendsync/internal/sync/version"
	dErrors "attendsync/pkg/domain-errors"
	"attendsync/pkg/platform/sentinel"
	"attendsync/pkg/requestcontext"
)

// Store is the relational system of record. Upserts return the version
// that ended up stored.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockVersion(ctx context.Context, entry collections.Entry, id string) (int64, error)
	UpsertAttendance(ctx context.Context, entry collections.Entry, e models.AttendanceEvent) (int64, error)
	UpsertUser(ctx context.Context, entry collections.Entry, u models.User) (int64, error)
	UpsertCourse(ctx context.Context, entry collections.Entry, c models.Course) (int64, error)
	UpsertGeneric(ctx context.Context, entry collections.Entry, g models.GenericRecord) (int64, error)
	Delete(ctx context.Context, entry collections.Entry, id string) (bool, error)
}

// DocumentStore is the read mirror.
type DocumentStore interface {
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// Reconciler records compensating actions.
type Reconciler interface {
	Enqueue(ctx context.Context, a reconcile.Action) error
}

const (
	opUpsert = "upsert"
	opDelete = "delete"

	compensationTimeout = 5 * time.Second
	reasonCommitFailed  = "relational commit failed after document write"
)

// Service performs dual-writes: the relational row and the document change
// happen inside one relational transaction, and the transaction only commits
// once the document store has accepted the write.
type Service struct {
	store   Store
	docs    DocumentStore
	queue   Reconciler
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReconciler sets where compensating actions go. Without one they are
// only logged.
func WithReconciler(q Reconciler) Option {
	return func(s *Service) {
		s.queue = q
	}
}

// New constructs a Service.
func New(store Store, docs DocumentStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("relational store is required")
	}
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	s := &Service{
		store:  store,
		docs:   docs,
		tracer: otel.Tracer("attendsync/internal/sync/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.queue == nil {
		s.queue = reconcile.NewLogQueue(s.logger, s.metrics)
	}
	return s, nil
}

// UpsertAttendance writes one attendance event to both stores. A missing
// status becomes "present" and a missing timestamp becomes the request time.
func (s *Service) UpsertAttendance(ctx context.Context, e models.AttendanceEvent) (*models.Receipt, error) {
	entry, _ := collections.Lookup(collections.Attendance)
	if err := e.Normalize(models.StatusPresent); err != nil {
		return nil, s.reject(opUpsert, entry.Name, err)
	}

	now := requestcontext.Now(ctx)
	e.TsUTC = version.EnsureUTC(e.TsUTC, now)
	e.UpdatedAt = now
	e.Source = version.SourceWeb

	return s.upsert(ctx, entry, e.ID, e.Version, now,
		func(ctx context.Context, candidate int64) (int64, error) {
			e.Version = candidate
			return s.store.UpsertAttendance(ctx, entry, e)
		},
		func(persisted int64) map[string]any {
			e.Version = persisted
			return e.Document()
		})
}

// UpsertUser writes one user to both stores.
func (s *Service) UpsertUser(ctx context.Context, u models.User) (*models.Receipt, error) {
	entry, _ := collections.Lookup(collections.Users)
	if err := u.Normalize(); err != nil {
		return nil, s.reject(opUpsert, entry.Name, err)
	}

	now := requestcontext.Now(ctx)
	u.UpdatedAt = now
	u.Source = version.SourceWeb

	return s.upsert(ctx, entry, u.ID, u.Version, now,
		func(ctx context.Context, candidate int64) (int64, error) {
			u.Version = candidate
			return s.store.UpsertUser(ctx, entry, u)
		},
		func(persisted int64) map[string]any {
			u.Version = persisted
			return u.Document()
		})
}

// UpsertCourse writes one course to both stores.
func (s *Service) UpsertCourse(ctx context.Context, c models.Course) (*models.Receipt, error) {
	entry, _ := collections.Lookup(collections.Courses)
	if err := c.Normalize(); err != nil {
		return nil, s.reject(opUpsert, entry.Name, err)
	}

	now := requestcontext.Now(ctx)
	c.UpdatedAt = now
	c.Source = version.SourceWeb

	return s.upsert(ctx, entry, c.ID, c.Version, now,
		func(ctx context.Context, candidate int64) (int64, error) {
			c.Version = candidate
			return s.store.UpsertCourse(ctx, entry, c)
		},
		func(persisted int64) map[string]any {
			c.Version = persisted
			return c.Document()
		})
}

// UpsertGeneric writes an opaque document of an allow-listed passthrough
// collection. The typed collections are rejected here.
func (s *Service) UpsertGeneric(ctx context.Context, collection string, g models.GenericRecord) (*models.Receipt, error) {
	entry, err := collections.LookupGeneric(collection)
	if err != nil {
		return nil, s.reject(opUpsert, collection, err)
	}
	if err := g.Normalize(); err != nil {
		return nil, s.reject(opUpsert, entry.Name, err)
	}
	if err := entry.ValidateData(g.Data); err != nil {
		return nil, s.reject(opUpsert, entry.Name, err)
	}

	now := requestcontext.Now(ctx)
	g.UpdatedAt = now
	g.Source = version.SourceWeb

	return s.upsert(ctx, entry, g.ID, g.Version, now,
		func(ctx context.Context, candidate int64) (int64, error) {
			g.Version = candidate
			return s.store.UpsertGeneric(ctx, entry, g)
		},
		func(persisted int64) map[string]any {
			g.Version = persisted
			return g.Document()
		})
}

// Delete removes id from both stores. Missing rows and documents are not
// errors, so repeating a delete succeeds.
func (s *Service) Delete(ctx context.Context, collection, id string) (*models.DeleteReceipt, error) {
	entry, err := collections.Lookup(collection)
	if err != nil {
		return nil, s.reject(opDelete, collection, err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, s.reject(opDelete, entry.Name, dErrors.New(dErrors.CodeValidation, "id is required"))
	}

	ctx, span := s.startSpan(ctx, opDelete, entry, id)
	defer span.End()
	start := time.Now()

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Delete(ctx, entry, id); err != nil {
			return err
		}
		if err := s.docs.Delete(ctx, entry.Document, id); err != nil {
			return fmt.Errorf("delete %s document: %w", entry.Name, err)
		}
		return nil
	})
	s.metrics.ObserveSync(opDelete, entry.Name, time.Since(start))
	if err != nil {
		return nil, s.fail(ctx, span, reconcile.OpDelete, entry, id, 0, time.Time{}, err)
	}

	s.metrics.IncSync(opDelete, entry.Name, metrics.OutcomeOK)
	return &models.DeleteReceipt{ID: id, Deleted: true}, nil
}

// upsert runs the shared dual-write. write receives the candidate version
// and returns what the relational store persisted; doc builds the document
// fields for the persisted version.
func (s *Service) upsert(
	ctx context.Context,
	entry collections.Entry,
	id string,
	supplied int64,
	updatedAt time.Time,
	write func(ctx context.Context, candidate int64) (int64, error),
	doc func(persisted int64) map[string]any,
) (*models.Receipt, error) {
	ctx, span := s.startSpan(ctx, opUpsert, entry, id)
	defer span.End()
	start := time.Now()

	var persisted int64
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.LockVersion(ctx, entry, id)
		if err != nil {
			return err
		}
		got, err := write(ctx, version.NextVersion(supplied, stored))
		if err != nil {
			return err
		}
		persisted = version.Persisted(stored, got)
		if err := s.docs.Merge(ctx, entry.Document, id, doc(persisted)); err != nil {
			return fmt.Errorf("merge %s document: %w", entry.Name, err)
		}
		return nil
	})
	s.metrics.ObserveSync(opUpsert, entry.Name, time.Since(start))
	if err != nil {
		return nil, s.fail(ctx, span, reconcile.OpUpsert, entry, id, persisted, updatedAt, err)
	}

	span.SetAttributes(attribute.Int64("record.version", persisted))
	s.metrics.IncSync(opUpsert, entry.Name, metrics.OutcomeOK)
	return &models.Receipt{ID: id, Version: persisted, UpdatedAt: updatedAt}, nil
}

func (s *Service) startSpan(ctx context.Context, op string, entry collections.Entry, id string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "sync."+op, trace.WithAttributes(
		attribute.String("sync.collection", entry.Name),
		attribute.String("record.id", id),
	))
}

func (s *Service) reject(op, collection string, err error) error {
	s.metrics.IncSync(op, collection, metrics.OutcomeInvalid)
	return err
}

// fail logs a failed dual-write and converts it to a StoreWriteError. When
// only the commit failed, the document store already holds the change and a
// compensating action is recorded.
func (s *Service) fail(ctx context.Context, span trace.Span, op reconcile.Op, entry collections.Entry, id string, ver int64, updatedAt time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(op)+" failed")
	s.metrics.IncSync(string(op), entry.Name, metrics.OutcomeError)
	s.logger.ErrorContext(ctx, "sync write failed",
		"op", op,
		"collection", entry.Name,
		"id", id,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)

	if errors.Is(err, sentinel.ErrCommitFailed) {
		s.compensate(ctx, reconcile.Action{
			Op:         op,
			Collection: entry.Name,
			ID:         id,
			Version:    ver,
			UpdatedAt:  updatedAt,
			Reason:     reasonCommitFailed,
			OccurredAt: requestcontext.Now(ctx),
		})
	}

	return dErrors.Wrap(err, dErrors.CodeStoreWrite, "failed to "+string(op)+" "+entry.Name)
}

// compensate enqueues a on a context that outlives the request.
func (s *Service) compensate(ctx context.Context, a reconcile.Action) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "reconciliation enqueue failed",
			"op", a.Op,
			"collection", a.Collection,
			"id", a.ID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
