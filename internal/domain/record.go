package domain

import (
	"strconv"
	"strings"
	"time"
)

// RawRecord is one row of an input chunk as produced by the upstream
// splitter: the original columns in order, plus the narrative and optional
// city/state fields located by column auto-detection. Immutable once read.
type RawRecord struct {
	SourceChunk string // chunk file name, used for checkpointing and year detection
	Columns     []string
	Values      map[string]string

	Narrative string
	City      string
	State     string
}

// Evasive is the tri-state evasive-action flag.
const (
	EvasiveYes     = "YES"
	EvasiveNo      = "NO"
	EvasiveUnknown = "UNKNOWN"
)

// DerivedColumns are the eight enrichment columns appended to every record,
// in sink order.
var DerivedColumns = []string{
	"Acft_Type",
	"UAS_Color",
	"Alt_Ft",
	"Evasive",
	"LEO_Agency",
	"Assigned_Airport",
	"Airport_Longitude",
	"Airport_Latitude",
}

// EnrichedRecord is a RawRecord plus the derived fields. The coordinate
// invariant holds by construction: AirportLon/AirportLat are non-nil exactly
// when AssignedAirport is non-empty, and always inside the configured
// bounding box.
type EnrichedRecord struct {
	RawRecord

	AircraftType    string // "" when no rule matched
	UASColor        string // "UNKNOWN" when no color found
	AltitudeFt      *int
	Evasive         string // YES, NO, or UNKNOWN
	LEOAgency       string
	AssignedAirport string // IATA code, "" when unresolved
	AirportLon      *float64
	AirportLat      *float64

	ProcessedAt time.Time
}

// DerivedValues renders the derived fields as sink cells, aligned with
// DerivedColumns.
func (r EnrichedRecord) DerivedValues() []string {
	alt := ""
	if r.AltitudeFt != nil {
		alt = strconv.Itoa(*r.AltitudeFt)
	}
	lon, lat := "", ""
	if r.AirportLon != nil {
		lon = strconv.FormatFloat(*r.AirportLon, 'f', -1, 64)
	}
	if r.AirportLat != nil {
		lat = strconv.FormatFloat(*r.AirportLat, 'f', -1, 64)
	}
	return []string{
		r.AircraftType,
		r.UASColor,
		alt,
		r.Evasive,
		r.LEOAgency,
		r.AssignedAirport,
		lon,
		lat,
	}
}

// sentinelValues are the textual "no data" variants standardized to the
// empty string before any record comparison.
var sentinelValues = map[string]struct{}{
	"N/A":          {},
	"NA":           {},
	"UNKNOWN":      {},
	"NOT REPORTED": {},
	"NONE":         {},
	"NULL":         {},
	"UNREPORTED":   {},
	"":             {},
}

// StandardizeValue maps sentinel placeholders to the canonical null marker
// (the empty string). Non-sentinel values pass through untouched.
func StandardizeValue(val string) string {
	if _, ok := sentinelValues[strings.ToUpper(strings.TrimSpace(val))]; ok {
		return ""
	}
	return val
}

// stateAbbrev normalizes full state names (and a few historical
// abbreviations seen in FAA data) to USPS two-letter codes.
var stateAbbrev = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA",
	"COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "FLORIDA": "FL", "GEORGIA": "GA",
	"HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA",
	"KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD",
	"MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS", "MISSOURI": "MO",
	"MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ",
	"NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH",
	"OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT",
	"VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
	"DISTRICT OF COLUMBIA": "DC", "CALIF": "CA", "PENN": "PA", "MASS": "MA", "MICH": "MI",
}

// NormalizeState maps a state name or abbreviation to its two-letter code.
// Unrecognized multi-letter names pass through upper-cased.
func NormalizeState(state string) string {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return ""
	}
	if len(state) == 2 {
		return state
	}
	if abbrev, ok := stateAbbrev[state]; ok {
		return abbrev
	}
	return state
}

// LocationKey derives the normalized geocoding cache key for a city/state
// pair: lower-cased, whitespace-collapsed "city,state". Returns "" when
// either part is missing.
func LocationKey(city, state string) string {
	city = strings.ToLower(strings.Join(strings.Fields(city), " "))
	state = strings.ToLower(NormalizeState(state))
	if city == "" || state == "" {
		return ""
	}
	return city + "," + state
}

// Coordinate is a WGS-84 longitude/latitude pair.
type Coordinate struct {
	Lon float64
	Lat float64
}
