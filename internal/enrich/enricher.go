// Package enrich turns raw sighting rows into enriched records by combining
// narrative field extraction with airport resolution.
package enrich

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/aerowatch/uas-sighting-etl/internal/domain"
	"github.com/aerowatch/uas-sighting-etl/internal/observability"
	"github.com/aerowatch/uas-sighting-etl/internal/resolver"
)

var clock = clockwork.NewRealClock()

// SetClock replaces the package clock, for tests.
func SetClock(c clockwork.Clock) {
	clock = c
}

// RecordEnricher derives the enrichment columns for one record. It never
// fails a record: missing evidence produces empty or UNKNOWN fields, and the
// record flows through regardless.
type RecordEnricher struct {
	extractor *domain.Extractor
	resolver  *resolver.Resolver
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a RecordEnricher.
func New(extractor *domain.Extractor, res *resolver.Resolver, logger *slog.Logger, metrics *observability.Metrics) *RecordEnricher {
	return &RecordEnricher{
		extractor: extractor,
		resolver:  res,
		logger:    logger,
		metrics:   metrics,
	}
}

// Transform enriches one raw record.
func (e *RecordEnricher) Transform(ctx context.Context, raw domain.RawRecord) (domain.EnrichedRecord, error) {
	details := e.extractor.Details(raw.Narrative)
	leo := e.extractor.LEOAgency(raw.Narrative)
	res := e.resolver.Resolve(ctx, raw)

	e.observe(details, leo, res)

	out := domain.EnrichedRecord{
		RawRecord:       raw,
		AircraftType:    details.AircraftType,
		UASColor:        details.UASColor,
		AltitudeFt:      details.AltitudeFt,
		Evasive:         details.Evasive,
		LEOAgency:       leo,
		AssignedAirport: res.Airport,
		ProcessedAt:     clock.Now().UTC(),
	}
	if res.Coord != nil {
		lon, lat := res.Coord.Lon, res.Coord.Lat
		out.AirportLon = &lon
		out.AirportLat = &lat
	}
	return out, nil
}

func (e *RecordEnricher) observe(details domain.Details, leo string, res resolver.Resolution) {
	report := func(field string, hit bool) {
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		e.metrics.ExtractionResults.WithLabelValues(field, outcome).Inc()
	}
	report(domain.FieldAircraftType, details.AircraftType != "")
	report(domain.FieldUASColor, details.UASColor != "UNKNOWN")
	report(domain.FieldAltitude, details.AltitudeFt != nil)
	report(domain.FieldEvasive, details.Evasive != domain.EvasiveUnknown)
	report("leo_agency", leo != "UNKNOWN")
	report(domain.FieldAirport, res.Airport != "")
}
