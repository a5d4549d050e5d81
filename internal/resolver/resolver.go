// Package resolver assigns an airport to a sighting. Narrative evidence is
// tried first, tier by tier; geocoding the reported city is the last resort
// and the only step that can touch the network.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aerowatch/uas-sighting-etl/internal/airports"
	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
)

// Cache is the persistent geocode result store consulted before the
// geocoder.
type Cache interface {
	Lookup(key string) (domain.Coordinate, bool)
	Store(key string, coord domain.Coordinate)
}

// Resolution is the outcome of an airport assignment. Airport and Coord are
// set together or not at all, and Coord always lies inside the configured
// bounding box.
type Resolution struct {
	Airport string
	Coord   *domain.Coordinate
	Tier    domain.Tier // tier that produced the match, TierFallback for geocoded
}

// Resolver runs the airport assignment cascade.
type Resolver struct {
	extractor *domain.Extractor
	directory *airports.Directory
	cache     Cache
	geocoder  domain.Geocoder // nil disables the fallback
	bounds    config.Bounds
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a resolver. Pass a nil geocoder to disable the fallback tier;
// narrative-based resolution still works.
func New(
	extractor *domain.Extractor,
	directory *airports.Directory,
	cache Cache,
	geocoder domain.Geocoder,
	bounds config.Bounds,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Resolver {
	return &Resolver{
		extractor: extractor,
		directory: directory,
		cache:     cache,
		geocoder:  geocoder,
		bounds:    bounds,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve assigns an airport to one record. A record that yields no valid
// evidence returns an empty Resolution, never an error: unresolvable rows
// are data, not failures.
func (r *Resolver) Resolve(ctx context.Context, rec domain.RawRecord) Resolution {
	for _, tier := range r.extractor.Tiers(domain.FieldAirport) {
		entry, ok := r.tierCandidate(tier, rec.Narrative)
		if !ok {
			r.metrics.AirportResolutions.WithLabelValues(string(tier), "no_candidates").Inc()
			continue
		}
		if !r.bounds.Contains(entry.Lon, entry.Lat) {
			r.metrics.AirportResolutions.WithLabelValues(string(tier), "out_of_bounds").Inc()
			continue
		}
		r.metrics.AirportResolutions.WithLabelValues(string(tier), "resolved").Inc()
		coord := entry.Coordinate()
		return Resolution{Airport: entry.IATA, Coord: &coord, Tier: tier}
	}

	return r.fallback(ctx, rec)
}

// tierCandidate evaluates one tier's rules and returns the directory entry
// for the latest valid code mentioned. When a narrative names several
// airports the final mention is the one the report settles on.
func (r *Resolver) tierCandidate(tier domain.Tier, narrative string) (airports.Entry, bool) {
	matches := r.extractor.TierMatches(domain.FieldAirport, tier, narrative)

	var (
		best    airports.Entry
		bestPos = -1
		found   bool
	)
	for _, m := range matches {
		entry, ok := r.lookupCode(m.Value)
		if !ok {
			continue
		}
		if m.Pos > bestPos {
			best, bestPos, found = entry, m.Pos, true
		}
	}
	return best, found
}

func (r *Resolver) lookupCode(code string) (airports.Entry, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 4 {
		return r.directory.ResolveICAO(code)
	}
	return r.directory.LookupIATA(code)
}

// fallback geocodes the reported city/state and assigns the nearest
// in-bounds airport. The published coordinates are the airport's own, so the
// code/coordinate pairing stays consistent with narrative-based matches.
func (r *Resolver) fallback(ctx context.Context, rec domain.RawRecord) Resolution {
	key := domain.LocationKey(rec.City, rec.State)
	if key == "" {
		r.metrics.AirportResolutions.WithLabelValues(string(domain.TierFallback), "no_location").Inc()
		return Resolution{}
	}

	coord, ok := r.cache.Lookup(key)
	if !ok {
		if r.geocoder == nil {
			r.metrics.AirportResolutions.WithLabelValues(string(domain.TierFallback), "geocoder_disabled").Inc()
			return Resolution{}
		}
		var err error
		coord, err = r.geocoder.Resolve(ctx, key)
		if err != nil {
			r.logger.Warn("geocode fallback failed", "location", key, "error", err)
			r.metrics.AirportResolutions.WithLabelValues(string(domain.TierFallback), "geocode_failed").Inc()
			return Resolution{}
		}
		r.cache.Store(key, coord)
	}

	entry, ok := r.directory.Nearest(coord, r.bounds)
	if !ok {
		r.metrics.AirportResolutions.WithLabelValues(string(domain.TierFallback), "no_airport_in_bounds").Inc()
		return Resolution{}
	}

	r.metrics.AirportResolutions.WithLabelValues(string(domain.TierFallback), "resolved").Inc()
	airportCoord := entry.Coordinate()
	return Resolution{Airport: entry.IATA, Coord: &airportCoord, Tier: domain.TierFallback}
}
