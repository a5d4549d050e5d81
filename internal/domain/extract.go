package domain

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Details are the narrative-derived scalar fields independent of the
// airport cascade.
type Details struct {
	AircraftType string
	UASColor     string
	AltitudeFt   *int
	Evasive      string
}

// Match is one rule hit: the transformed value and the byte offset of the
// match in the narrative.
type Match struct {
	Value string
	Pos   int
}

// Extractor applies PatternLibrary rules to narratives. Every rule
// evaluation is bounded by the match timeout; a rule that exceeds it counts
// as a non-match and evaluation proceeds, so pathological input can slow a
// record down but never wedge the run. Extraction is stateless: identical
// input always yields identical output.
type Extractor struct {
	lib          *PatternLibrary
	maxLen       int
	matchTimeout time.Duration
	logger       *slog.Logger

	// OnTimeout, when set, is called once per rule evaluation that exceeds
	// the time budget.
	OnTimeout func()
}

// NewExtractor creates a field extractor with the given narrative cap and
// per-rule time budget.
func NewExtractor(lib *PatternLibrary, maxLen int, matchTimeout time.Duration, logger *slog.Logger) *Extractor {
	return &Extractor{
		lib:          lib,
		maxLen:       maxLen,
		matchTimeout: matchTimeout,
		logger:       logger,
	}
}

// Truncate caps a narrative at the configured maximum length. Longer input
// is cut, not rejected.
func (e *Extractor) Truncate(narrative string) string {
	if len(narrative) > e.maxLen {
		e.logger.Warn("narrative truncated", "from", len(narrative), "to", e.maxLen)
		return narrative[:e.maxLen]
	}
	return narrative
}

// Field runs the cascade for one field and returns the first (highest-tier)
// transformed value, or ok=false when no rule matched.
func (e *Extractor) Field(field, narrative string) (string, bool) {
	narrative = e.Truncate(narrative)
	for _, rule := range e.lib.Rules(field) {
		if rule.Requires != nil {
			if ok, done := e.matchBounded(rule.Requires, narrative); !ok || !done {
				continue
			}
		}
		groups, done := e.submatchBounded(rule.Pattern, narrative)
		if !done || groups == nil {
			continue
		}
		return applyTransform(rule.Transform, groups[rule.Group]), true
	}
	return "", false
}

// TierMatches returns every hit for the rules of one tier of a field, in
// narrative order. Used by the airport resolver, which validates candidates
// against the directory before accepting a tier.
func (e *Extractor) TierMatches(field string, tier Tier, narrative string) []Match {
	narrative = e.Truncate(narrative)
	var matches []Match
	for _, rule := range e.lib.Rules(field) {
		if rule.Tier != tier {
			continue
		}
		idx, done := e.allSubmatchesBounded(rule.Pattern, narrative)
		if !done {
			continue
		}
		for _, loc := range idx {
			start, end := loc[2*rule.Group], loc[2*rule.Group+1]
			if start < 0 {
				continue
			}
			matches = append(matches, Match{
				Value: applyTransform(rule.Transform, narrative[start:end]),
				Pos:   loc[0],
			})
		}
	}
	return matches
}

// Tiers exposes the ordered tier list for a field.
func (e *Extractor) Tiers(field string) []Tier {
	return e.lib.Tiers(field)
}

// Details extracts aircraft type, UAS color, altitude, and the evasive flag.
func (e *Extractor) Details(narrative string) Details {
	d := Details{UASColor: "UNKNOWN", Evasive: EvasiveUnknown}
	if narrative == "" {
		return d
	}

	if v, ok := e.Field(FieldAircraftType, narrative); ok {
		d.AircraftType = v
	}
	if v, ok := e.Field(FieldUASColor, narrative); ok {
		d.UASColor = v
	}
	if v, ok := e.Field(FieldAltitude, narrative); ok {
		if ft, err := strconv.Atoi(v); err == nil {
			d.AltitudeFt = &ft
		}
	}
	if v, ok := e.Field(FieldEvasive, narrative); ok {
		d.Evasive = v
	}
	return d
}

// LEO agency extraction. Agencies appear as "<AGENCY> NOTIFIED", usually at
// the end of the narrative, so the last occurrence is preferred. FAA
// facility designators get "ADVISED", not "NOTIFIED", and are excluded.
var (
	leoAgencyRe = regexp.MustCompile(`([A-Z][A-Z\s]{2,40}?)\s+NOTIFIED`)
	leoPrefixRe = regexp.MustCompile(`^(LEO|THE|AND|ACTION|EVASIVE)\s+`)
	leoSuffixRe = regexp.MustCompile(`\s+(NO|NOT|TAKEN|REPORTED)\.?$`)
)

var leoNotReportedMarkers = []string{
	"NOT REPORTED",
	"NO LEO",
	"NOT NOTIFIED",
	"NOTIFICATION NOT REPORTED",
	"LEOS NOT NOTIFIED",
}

var faaFacilities = []string{
	"ATCT", "TRACON", "APCH", "APPROACH", "TWR", "TOWER", "CENTER", "FSS", "ARTCC",
}

var leoNoiseWords = map[string]struct{}{
	"NO": {}, "WAS": {}, "WERE": {}, "ACTION": {}, "EVASIVE": {}, "WOC": {},
}

// LEOAgency extracts the notified law-enforcement agency, "NONE REPORTED"
// when the narrative says notification did not happen, or "UNKNOWN".
func (e *Extractor) LEOAgency(narrative string) string {
	if narrative == "" {
		return "UNKNOWN"
	}
	narrative = e.Truncate(narrative)

	upper := strings.ToUpper(narrative)
	for _, marker := range leoNotReportedMarkers {
		if strings.Contains(upper, marker) {
			return "NONE REPORTED"
		}
	}

	idx, done := e.allSubmatchesBounded(leoAgencyRe, narrative)
	if !done {
		return "UNKNOWN"
	}

	for i := len(idx) - 1; i >= 0; i-- {
		agency := strings.TrimSpace(narrative[idx[i][2]:idx[i][3]])

		if containsAny(agency, faaFacilities) {
			continue
		}

		agency = leoPrefixRe.ReplaceAllString(agency, "")
		agency = leoSuffixRe.ReplaceAllString(agency, "")
		agency = strings.Trim(agency, ". ")

		if _, noise := leoNoiseWords[agency]; len(agency) >= 2 && !noise {
			return agency
		}
	}
	return "UNKNOWN"
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// applyTransform maps a raw capture to its field value.
func applyTransform(transform, raw string) string {
	switch transform {
	case "color":
		c := strings.ToUpper(raw)
		c = strings.ReplaceAll(c, "MULTI-COLOR", "MULTI-COLORED")
		c = strings.ReplaceAll(c, "MULTI COLOR", "MULTI-COLORED")
		return c
	case "feet":
		return strings.ReplaceAll(raw, ",", "")
	case "flight_level":
		fl, err := strconv.Atoi(raw)
		if err != nil {
			return ""
		}
		return strconv.Itoa(fl * 100)
	case "evasive_yes":
		return EvasiveYes
	case "evasive_no":
		return EvasiveNo
	default:
		return raw
	}
}

// Bounded-time matching. Go's regexp engine runs in linear time; the budget
// bounds worst-case cost on very large narratives. The worker goroutine is
// left to finish on its own after a timeout; it holds no locks.

func (e *Extractor) matchBounded(re *regexp.Regexp, text string) (matched, done bool) {
	ch := make(chan bool, 1)
	go func() { ch <- re.MatchString(text) }()
	select {
	case m := <-ch:
		return m, true
	case <-clock.After(e.matchTimeout):
		e.timedOut(re)
		return false, false
	}
}

func (e *Extractor) submatchBounded(re *regexp.Regexp, text string) (groups []string, done bool) {
	ch := make(chan []string, 1)
	go func() { ch <- re.FindStringSubmatch(text) }()
	select {
	case m := <-ch:
		return m, true
	case <-clock.After(e.matchTimeout):
		e.timedOut(re)
		return nil, false
	}
}

func (e *Extractor) allSubmatchesBounded(re *regexp.Regexp, text string) (idx [][]int, done bool) {
	ch := make(chan [][]int, 1)
	go func() { ch <- re.FindAllStringSubmatchIndex(text, -1) }()
	select {
	case m := <-ch:
		return m, true
	case <-clock.After(e.matchTimeout):
		e.timedOut(re)
		return nil, false
	}
}

func (e *Extractor) timedOut(re *regexp.Regexp) {
	e.logger.Debug("rule match timed out", "pattern", re.String())
	if e.OnTimeout != nil {
		e.OnTimeout()
	}
}
