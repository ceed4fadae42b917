package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendsync/internal/docstore"
	"attendsync/internal/platform/metrics"
	"attendsync/internal/reconcile"
	"attendsync/internal/sync/service"
	"attendsync/pkg/testutil"
)

type readiness struct{ err error }

func (r readiness) Ready(context.Context) error { return r.err }

// unavailableStore fails every relational call so requests exercise the
// error path end to end.
type unavailableStore struct{ service.Store }

func (unavailableStore) RunInTx(context.Context, func(context.Context) error) error {
	return errors.New("dial tcp 10.0.0.7:5432: connection refused")
}

func newRouter(t *testing.T, ready error) (http.Handler, *docstore.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	docs := docstore.NewMemory()
	svc, err := service.New(unavailableStore{}, docs,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithReconciler(reconcile.NewLogQueue(logger, m)),
	)
	require.NoError(t, err)

	return NewRouter(Deps{
		Logger:   logger,
		Metrics:  m,
		Gatherer: reg,
		Ready:    readiness{err: ready},
		Sync:     svc,
	}), docs
}

func TestHealthAndReadiness(t *testing.T) {
	router, _ := newRouter(t, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ready")

	failing, _ := newRouter(t, errors.New("postgres down"))
	rr = testutil.DoRequest(failing, testutil.NewRequest(t, http.MethodGet, "/readyz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router, _ := newRouter(t, nil)
	req := testutil.NewRequest(t, http.MethodGet, "/healthz")
	req.Header.Set("X-Request-ID", "req-123")

	rr := testutil.DoRequest(router, req)
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
}

func TestStoreFailureDoesNotLeak(t *testing.T) {
	testutil.Given(t, "an unreachable relational store", func(t *testing.T) {
		router, docs := newRouter(t, nil)

		testutil.When(t, "a user upsert arrives", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/sync/users/upsert", `{"id":"u1","email":"a@b.com"}`))

			testutil.Then(t, "the caller gets an opaque 500", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusInternalServerError)
				testutil.AssertOpaqueServerError(t, rr, "store_write_error")
				assert.NotContains(t, rr.Body.String(), "10.0.0.7")
			})

			testutil.And(t, "the document store is untouched", func(t *testing.T) {
				merges, _ := docs.Writes()
				assert.Zero(t, merges)
			})
		})
	})
}

func TestUnsupportedCollectionTouchesNoStore(t *testing.T) {
	router, docs := newRouter(t, nil)

	rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/sync/payments/upsert", `{"id":"p1","data":{"a":1}}`))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "unsupported_collection")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/sync/payments/p1"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "unsupported_collection")

	merges, deletes := docs.Writes()
	assert.Zero(t, merges)
	assert.Zero(t, deletes)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t, nil)
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "attendsync_http_requests_total")
}
