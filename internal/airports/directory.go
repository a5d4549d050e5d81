// Package airports provides the embedded US airport directory used to
// validate airport codes pulled out of narratives and to pick a fallback
// airport near a geocoded city.
package airports

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

//go:embed us_airports.csv
var airportsCSV []byte

// Entry is one directory airport.
type Entry struct {
	IATA  string
	ICAO  string
	Name  string
	City  string
	State string
	Lat   float64
	Lon   float64
}

// Coordinate returns the entry's position.
func (e Entry) Coordinate() domain.Coordinate {
	return domain.Coordinate{Lon: e.Lon, Lat: e.Lat}
}

// blacklist holds three-letter tokens that look like IATA codes in upper-case
// narratives but never are: agencies, flight-rule acronyms, time zones. A
// blacklisted token is rejected even when a real airport shares the code
// (MDT the time zone drowns out MDT Harrisburg in practice).
var blacklist = map[string]struct{}{
	"FBI": {}, "FAA": {}, "TSA": {}, "DHS": {}, "LEO": {}, "ATC": {},
	"VFR": {}, "IFR": {}, "UAS": {}, "UFO": {}, "USA": {}, "UTC": {},
	"EST": {}, "PST": {}, "MST": {}, "CST": {},
	"EDT": {}, "PDT": {}, "MDT": {}, "CDT": {},
}

// Blacklisted reports whether a candidate code must be rejected outright.
func Blacklisted(code string) bool {
	_, ok := blacklist[strings.ToUpper(code)]
	return ok
}

// Directory is the in-memory airport index. Immutable after Load.
type Directory struct {
	byIATA map[string]Entry
	byICAO map[string]Entry
	all    []Entry
}

// Load parses the embedded airport dataset.
func Load() (*Directory, error) {
	r := csv.NewReader(bytes.NewReader(airportsCSV))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse airport dataset: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("airport dataset is empty")
	}

	d := &Directory{
		byIATA: make(map[string]Entry, len(rows)-1),
		byICAO: make(map[string]Entry, len(rows)-1),
	}
	for i, row := range rows[1:] {
		if len(row) != 7 {
			return nil, fmt.Errorf("airport dataset row %d: want 7 fields, got %d", i+2, len(row))
		}
		lat, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("airport dataset row %d: latitude: %w", i+2, err)
		}
		lon, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("airport dataset row %d: longitude: %w", i+2, err)
		}
		e := Entry{
			IATA:  row[0],
			ICAO:  row[1],
			Name:  row[2],
			City:  row[3],
			State: row[4],
			Lat:   lat,
			Lon:   lon,
		}
		d.byIATA[e.IATA] = e
		d.byICAO[e.ICAO] = e
		d.all = append(d.all, e)
	}
	return d, nil
}

// LookupIATA resolves a three-letter code to its airport. Blacklisted codes
// and codes not in the directory return false.
func (d *Directory) LookupIATA(code string) (Entry, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if Blacklisted(code) {
		return Entry{}, false
	}
	e, ok := d.byIATA[code]
	return e, ok
}

// ResolveICAO resolves a four-letter ICAO code to its airport. Only codes
// the directory actually lists qualify, so a random K-word such as KING
// does not become an airport by prefix-stripping.
func (d *Directory) ResolveICAO(code string) (Entry, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	e, ok := d.byICAO[code]
	if !ok {
		return Entry{}, false
	}
	if Blacklisted(e.IATA) {
		return Entry{}, false
	}
	return e, true
}

// Nearest returns the directory airport closest to target whose own
// position lies inside bounds. Out-of-bounds airports (Alaska, Hawaii) are
// skipped regardless of distance.
func (d *Directory) Nearest(target domain.Coordinate, bounds config.Bounds) (Entry, bool) {
	var (
		best     Entry
		bestDist = math.Inf(1)
		found    bool
	)
	for _, e := range d.all {
		if !bounds.Contains(e.Lon, e.Lat) {
			continue
		}
		if dist := haversineKm(target.Lat, target.Lon, e.Lat, e.Lon); dist < bestDist {
			best, bestDist, found = e, dist, true
		}
	}
	return best, found
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
