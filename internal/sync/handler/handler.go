package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attendsync/internal/sync/collections"
	"attendsync/internal/sync/models"
	dErrors "attendsync/pkg/domain-errors"
	"attendsync/pkg/platform/httputil"
	"attendsync/pkg/requestcontext"
)

// Service defines the sync operations exposed over HTTP.
type Service interface {
	UpsertAttendance(ctx context.Context, e models.AttendanceEvent) (*models.Receipt, error)
	UpsertUser(ctx context.Context, u models.User) (*models.Receipt, error)
	UpsertCourse(ctx context.Context, c models.Course) (*models.Receipt, error)
	UpsertGeneric(ctx context.Context, collection string, g models.GenericRecord) (*models.Receipt, error)
	Delete(ctx context.Context, collection, id string) (*models.DeleteReceipt, error)
}

// Handler serves the /sync routes.
type Handler struct {
	logger *slog.Logger
	sync   Service
}

// New creates a new sync Handler.
func New(sync Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, sync: sync}
}

// Register registers the sync routes with the chi router. The typed routes
// are static and take precedence over the {collection} pattern.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sync/attendance/upsert", h.handleUpsertAttendance)
	r.Post("/sync/users/upsert", h.handleUpsertUser)
	r.Post("/sync/courses/upsert", h.handleUpsertCourse)
	r.Post("/sync/{collection}/upsert", h.handleUpsertGeneric)
	r.Delete("/sync/{collection}/{id}", h.handleDelete)
}

func (h *Handler) handleUpsertAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AttendanceRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	receipt, err := h.sync.UpsertAttendance(ctx, req.Model())
	h.respondUpsert(w, ctx, "attendance", req.ID, receipt, err)
}

func (h *Handler) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UserRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	receipt, err := h.sync.UpsertUser(ctx, req.Model())
	h.respondUpsert(w, ctx, "users", req.ID, receipt, err)
}

func (h *Handler) handleUpsertCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CourseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	receipt, err := h.sync.UpsertCourse(ctx, req.Model())
	h.respondUpsert(w, ctx, "courses", req.ID, receipt, err)
}

func (h *Handler) handleUpsertGeneric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection := chi.URLParam(r, "collection")
	// An unknown collection is a 404 whatever the body holds.
	if _, err := collections.LookupGeneric(collection); err != nil {
		h.writeServiceError(w, ctx, "upsert", collection, "", err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[GenericRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	receipt, err := h.sync.UpsertGeneric(ctx, collection, req.Model())
	h.respondUpsert(w, ctx, collection, req.ID, receipt, err)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	receipt, err := h.sync.Delete(ctx, collection, id)
	if err != nil {
		h.writeServiceError(w, ctx, "delete", collection, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{ID: receipt.ID, Deleted: receipt.Deleted})
}

func (h *Handler) respondUpsert(w http.ResponseWriter, ctx context.Context, collection, id string, receipt *models.Receipt, err error) {
	if err != nil {
		h.writeServiceError(w, ctx, "upsert", collection, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUpsertResponse(receipt))
}

// writeServiceError logs and writes err. Client errors are logged at warn;
// everything else was already logged in detail by the service.
func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, op, collection, id string, err error) {
	requestID := requestcontext.RequestID(ctx)
	if de, ok := dErrors.As(err); ok && dErrors.HTTPStatus(de.Code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, "sync request rejected",
			"op", op,
			"collection", collection,
			"id", id,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.ErrorContext(ctx, "sync request failed",
			"op", op,
			"collection", collection,
			"id", id,
			"request_id", requestID,
		)
	}
	httputil.WriteError(w, err)
}
