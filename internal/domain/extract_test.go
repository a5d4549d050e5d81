package domain

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	lib, err := LoadPatternLibrary()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExtractor(lib, 50000, 2*time.Second, logger)
}

func TestExtractor_Details_FullNarrative(t *testing.T) {
	e := newTestExtractor(t)
	narrative := "UAS WAS REPORTED 5 NW LAX AT 1500 FEET, BLACK IN COLOR, NO EVASIVE ACTION TAKEN. LAPD NOTIFIED."

	d := e.Details(narrative)

	assert.Equal(t, "", d.AircraftType)
	assert.Equal(t, "BLACK", d.UASColor)
	require.NotNil(t, d.AltitudeFt)
	assert.Equal(t, 1500, *d.AltitudeFt)
	assert.Equal(t, EvasiveNo, d.Evasive)
	assert.Equal(t, "LAPD", e.LEOAgency(narrative))
}

func TestExtractor_Details_Empty(t *testing.T) {
	e := newTestExtractor(t)

	d := e.Details("")

	assert.Equal(t, "", d.AircraftType)
	assert.Equal(t, "UNKNOWN", d.UASColor)
	assert.Nil(t, d.AltitudeFt)
	assert.Equal(t, EvasiveUnknown, d.Evasive)
}

func TestExtractor_Details_AircraftType(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name      string
		narrative string
		want      string
	}{
		{"advised form", "PILOT ADVISED, C172, REPORTED UAS OFF LEFT WING", "C172"},
		{"labeled form", "AIRCRAFT TYPE: B738 REPORTED A DRONE", "B738"},
		{"manufacturer fallback", "A CESSNA REPORTED A UAS AT LOW ALTITUDE", "CESSNA"},
		{"no match", "UAS REPORTED WITH NO TRAFFIC IN THE AREA", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Field(FieldAircraftType, tt.narrative)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_Details_Altitude(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name      string
		narrative string
		want      int
	}{
		{"plain feet", "UAS AT 1500 FEET", 1500},
		{"comma feet", "UAS AT 3,500 FEET OVER THE FIELD", 3500},
		{"ft abbreviation", "DRONE OBSERVED AT 400 FT", 400},
		{"flight level", "UAS REPORTED AT FL 250 BY CREW", 25000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Details(tt.narrative)
			require.NotNil(t, d.AltitudeFt)
			assert.Equal(t, tt.want, *d.AltitudeFt)
		})
	}

	d := e.Details("UAS REPORTED AT UNKNOWN ALTITUDE")
	assert.Nil(t, d.AltitudeFt)
}

func TestExtractor_Details_Color(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name      string
		narrative string
		want      string
	}{
		{"simple", "DRONE WAS RED AND HOVERING", "RED"},
		{"multi hyphen", "A MULTI-COLOR UAS PASSED BELOW", "MULTI-COLORED"},
		{"multi space", "UAS DESCRIBED AS MULTI COLOR", "MULTI-COLORED"},
		// The color guard rejects narratives that never mention a UAS or
		// drone, so aircraft liveries do not leak into the color field.
		{"no uas context", "A WHITE CESSNA DEPARTED RUNWAY 25", "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Details(tt.narrative)
			assert.Equal(t, tt.want, d.UASColor)
		})
	}
}

func TestExtractor_Details_Evasive(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name      string
		narrative string
		want      string
	}{
		{"took action", "PILOT TOOK EVASIVE ACTION TO AVOID UAS", EvasiveYes},
		{"no action", "NO EVASIVE ACTION TAKEN", EvasiveNo},
		// "NO EVASIVE" outranks the broader "EVASIVE ACTION" match.
		{"negation wins", "NO EVASIVE ACTION REPORTED BY THE CREW", EvasiveNo},
		{"unstated", "UAS REPORTED OFF THE RIGHT WING", EvasiveUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Details(tt.narrative)
			assert.Equal(t, tt.want, d.Evasive)
		})
	}
}

func TestExtractor_LEOAgency(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name      string
		narrative string
		want      string
	}{
		{"single agency", "UAS REPORTED. LAPD NOTIFIED.", "LAPD"},
		{"multi word agency", "DENVER PD NOTIFIED OF THE SIGHTING", "DENVER PD"},
		{"prefix stripped", "THE FBI NOTIFIED", "FBI"},
		{"not reported", "LEO NOTIFICATION NOT REPORTED", "NONE REPORTED"},
		{"no leo", "NO LEO ACTION TAKEN", "NONE REPORTED"},
		{"faa facility skipped", "PHOENIX TRACON NOTIFIED", "UNKNOWN"},
		{"facility then agency", "SEATTLE TOWER NOTIFIED. WSP NOTIFIED.", "WSP"},
		{"no mention", "UAS SIGHTED AT LOW ALTITUDE", "UNKNOWN"},
		{"empty", "", "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.LEOAgency(tt.narrative))
		})
	}
}

func TestExtractor_TierMatches(t *testing.T) {
	e := newTestExtractor(t)
	narrative := "UAS REPORTED 5 NW LAX, OBSERVED INSIDE DEN CLASS B"

	critical := e.TierMatches(FieldAirport, TierCritical, narrative)
	require.Len(t, critical, 1)
	assert.Equal(t, "LAX", critical[0].Value)

	medium := e.TierMatches(FieldAirport, TierMedium, narrative)
	require.Len(t, medium, 1)
	assert.Equal(t, "DEN", medium[0].Value)

	assert.Empty(t, e.TierMatches(FieldAirport, TierLow, narrative))
}

func TestExtractor_TierMatches_NarrativeOrder(t *testing.T) {
	e := newTestExtractor(t)
	narrative := "UAS 3 SW DEN, LATER SEEN 10 NE LAX"

	matches := e.TierMatches(FieldAirport, TierCritical, narrative)
	require.Len(t, matches, 2)
	assert.Equal(t, "DEN", matches[0].Value)
	assert.Equal(t, "LAX", matches[1].Value)
	assert.Less(t, matches[0].Pos, matches[1].Pos)
}

func TestExtractor_Field_RuleTimeout(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	SetClock(fakeClock)
	defer SetClock(nil)

	// A wide pattern that cannot match keeps the regexp engine scanning the
	// full input, so the evaluation is still running when the budget expires.
	pattern := strings.Repeat("A?", 300) + strings.Repeat("A", 300) + "B"
	doc := fmt.Sprintf("slow:\n  - tier: high\n    pattern: '%s'\n", pattern)
	lib, err := parsePatternLibrary([]byte(doc))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExtractor(lib, 1<<21, 50*time.Millisecond, logger)
	timeouts := 0
	e.OnTimeout = func() { timeouts++ }

	narrative := strings.Repeat("A", 1<<20)

	type result struct {
		value string
		ok    bool
	}
	done := make(chan result, 1)
	go func() {
		v, ok := e.Field("slow", narrative)
		done <- result{v, ok}
	}()

	// Wait for the matcher to arm its timer, then expire the budget.
	fakeClock.BlockUntil(1)
	fakeClock.Advance(50 * time.Millisecond)

	r := <-done
	assert.False(t, r.ok, "timed-out rule must count as a non-match")
	assert.Empty(t, r.value)
	assert.Equal(t, 1, timeouts)
}

func TestExtractor_Truncate(t *testing.T) {
	lib, err := LoadPatternLibrary()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExtractor(lib, 32, 2*time.Second, logger)

	// The altitude mention sits past the cap and must not be seen.
	narrative := "UAS REPORTED NEAR THE FIELD TODAY AT 1500 FEET"
	d := e.Details(narrative)
	assert.Nil(t, d.AltitudeFt)
	assert.Len(t, e.Truncate(narrative), 32)
}
