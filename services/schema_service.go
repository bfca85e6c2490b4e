// services/schema_service.go
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GrainArc/GeoEdit/models"
	"golang.org/x/sync/errgroup"
)

const schemaFetchLimit = 4

// SchemaFetcher loads the schema of one collection.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, collection string) (*models.CollectionDescriptor, error)
}

type SchemaService struct {
	fetcher SchemaFetcher
	logger  *slog.Logger
}

func NewSchemaService(fetcher SchemaFetcher, logger *slog.Logger) *SchemaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaService{fetcher: fetcher, logger: logger}
}

// LoadAll fetches the schema of every collection in crs (id to storage
// CRS) concurrently. A collection whose schema fails is logged and left out.
// Only cancellation of ctx is returned as an error.
func (s *SchemaService) LoadAll(ctx context.Context, crs map[string]string) (map[string]*models.CollectionDescriptor, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*models.CollectionDescriptor, len(crs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(schemaFetchLimit)
	for id, c := range crs {
		id, c := id, c
		g.Go(func() error {
			d, err := s.fetcher.FetchSchema(gctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("collection not editable", "error", &SchemaLoadError{Collection: id, Err: err})
				return nil
			}
			if c != "" {
				d.CRS = c
			}
			mu.Lock()
			out[id] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
