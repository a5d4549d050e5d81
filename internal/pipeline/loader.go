package pipeline

import (
	"context"

	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

// MultiLoader fans each batch out to several loaders in order. The first
// failure aborts the batch; earlier loaders may already have written it.
type MultiLoader []BatchLoader

// LoadBatch delivers the batch to every loader.
func (m MultiLoader) LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	for _, l := range m {
		if err := l.LoadBatch(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
