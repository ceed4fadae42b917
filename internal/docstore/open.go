package docstore

import (
	"context"
	"fmt"

	"attendsync/internal/platform/config"
	"attendsync/pkg/platform/sentinel"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.DocStoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.DocStoreSurreal:
		return NewSurreal(ctx, SurrealConfig{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
			User:      cfg.SurrealUser,
			Pass:      cfg.SurrealPass,
		})
	case config.DocStoreMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DocStoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("document store %q: %w", cfg.Backend, sentinel.ErrUnknownBackend)
	}
}
