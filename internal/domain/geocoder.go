package domain

import "context"

// Geocoder resolves a normalized location key (e.g. "denver,co") to
// coordinates. Implementations wrap an external service; callers must treat
// every call as a potential network round trip and consult the cache first.
type Geocoder interface {
	Resolve(ctx context.Context, locationKey string) (Coordinate, error)
}
