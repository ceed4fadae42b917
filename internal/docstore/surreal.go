package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"attendsync/internal/sync/version"
)

const surrealPageSize = 500

// SurrealConfig holds connection settings for SurrealDB.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Pass      string
}

// Surreal stores documents as SurrealDB records keyed table:id.
type Surreal struct {
	db *surrealdb.DB
}

// NewSurreal connects, signs in when credentials are given, and selects the
// namespace and database.
func NewSurreal(ctx context.Context, cfg SurrealConfig) (*Surreal, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w", err)
	}

	if cfg.User != "" && cfg.Pass != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.User,
			"pass": cfg.Pass,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("sign in surrealdb: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use surrealdb namespace: %w", err)
	}
	return &Surreal{db: db}, nil
}

func (s *Surreal) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	rid := models.NewRecordID(collection, id)
	vars := map[string]any{
		"rid":  &rid,
		"data": toSurreal(fields),
	}
	if err := s.exec(ctx, "UPSERT $rid MERGE $data RETURN NONE", vars); err != nil {
		return fmt.Errorf("merge %s:%s: %w", collection, id, err)
	}
	return nil
}

func (s *Surreal) Delete(ctx context.Context, collection, id string) error {
	rid := models.NewRecordID(collection, id)
	if err := s.exec(ctx, "DELETE $rid RETURN NONE", map[string]any{"rid": &rid}); err != nil {
		return fmt.Errorf("delete %s:%s: %w", collection, id, err)
	}
	return nil
}

// Stream pages through the table ordered by id.
func (s *Surreal) Stream(ctx context.Context, collection string, fn func(Document) error) error {
	for start := 0; ; start += surrealPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := surrealdb.Query[[]map[string]any](ctx, s.db,
			"SELECT * FROM type::table($tb) ORDER BY id LIMIT $limit START $start",
			map[string]any{"tb": collection, "limit": surrealPageSize, "start": start},
		)
		if err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		if res == nil || len(*res) == 0 {
			return nil
		}
		page := (*res)[0].Result
		for _, rec := range page {
			doc := surrealDocument(rec)
			if err := fn(doc); err != nil {
				if errors.Is(err, ErrStopStream) {
					return nil
				}
				return err
			}
		}
		if len(page) < surrealPageSize {
			return nil
		}
	}
}

func (s *Surreal) Ping(ctx context.Context) error {
	return s.exec(ctx, "RETURN true", nil)
}

func (s *Surreal) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

func (s *Surreal) exec(ctx context.Context, query string, vars map[string]any) error {
	res, err := surrealdb.Query[any](ctx, s.db, query, vars)
	if err != nil {
		return err
	}
	if res != nil {
		for _, r := range *res {
			if r.Status != "OK" {
				return fmt.Errorf("statement status %s", r.Status)
			}
		}
	}
	return nil
}

func surrealDocument(rec map[string]any) Document {
	fields := normalizeMap(rec)
	id := ""
	if raw, ok := rec["id"]; ok {
		id = version.String(normalize(raw))
	}
	delete(fields, "id")
	return Document{ID: id, Fields: fields}
}

// toSurreal converts times into the datetime type the SurrealDB codec
// understands; plain time.Time values are not encoded as datetimes.
func toSurreal(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = toSurrealValue(val)
	}
	return out
}

func toSurrealValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return &models.CustomDateTime{Time: t.UTC()}
	case map[string]any:
		return toSurreal(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toSurrealValue(val)
		}
		return out
	default:
		return v
	}
}
