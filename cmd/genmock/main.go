// Command genmock writes synthetic FAA UAS sighting chunk CSVs for local
// pipeline runs and demos. Narratives are built from the same phrasing the
// extractor targets, so a generated run exercises every enrichment path.
//
// Usage:
//
//	go run ./cmd/genmock -out ~/FAA_UAS_Sightings/Split_Chunks/2026-08-23 \
//	  -chunks 4 -rows 50 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
)

type site struct {
	city  string
	state string
	code  string
}

var sites = []site{
	{"Los Angeles", "CA", "LAX"},
	{"Denver", "CO", "DEN"},
	{"Chicago", "IL", "ORD"},
	{"Atlanta", "GA", "ATL"},
	{"Seattle", "WA", "SEA"},
	{"Boston", "MA", "BOS"},
	{"Phoenix", "AZ", "PHX"},
	{"Miami", "FL", "MIA"},
}

var (
	colors    = []string{"BLACK", "WHITE", "RED", "SILVER", "MULTI-COLOR"}
	compasses = []string{"N", "S", "E", "W", "NE", "NW", "SE", "SW"}
	agencies  = []string{"LAPD", "DENVER PD", "CHICAGO PD", "STATE POLICE", "SHERIFF"}
)

func main() {
	out := flag.String("out", "", "output directory for chunk CSVs")
	chunks := flag.Int("chunks", 4, "number of chunk files")
	rows := flag.Int("rows", 50, "rows per chunk")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		log.Fatal("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal(err)
	}

	for c := 1; c <= *chunks; c++ {
		name := fmt.Sprintf("chunk_%04d.csv", c)
		if err := writeChunk(filepath.Join(*out, name), *rows, rng); err != nil {
			log.Fatalf("write %s: %v", name, err)
		}
		log.Printf("wrote %s (%d rows)", name, *rows)
	}
}

func writeChunk(path string, rows int, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Date", "City", "State", "Summary"}); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(mockRow(rng)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func mockRow(rng *rand.Rand) []string {
	s := sites[rng.Intn(len(sites))]
	date := fmt.Sprintf("%d-%02d-%02d", 2023+rng.Intn(3), 1+rng.Intn(12), 1+rng.Intn(28))

	narrative := fmt.Sprintf("UAS WAS REPORTED %d %s %s AT %d FEET, %s IN COLOR",
		1+rng.Intn(15),
		compasses[rng.Intn(len(compasses))],
		s.code,
		(3+rng.Intn(80))*100,
		colors[rng.Intn(len(colors))],
	)

	switch rng.Intn(3) {
	case 0:
		narrative += ", NO EVASIVE ACTION TAKEN"
	case 1:
		narrative += ", PILOT TOOK EVASIVE ACTION"
	}

	switch rng.Intn(3) {
	case 0:
		narrative += ". " + agencies[rng.Intn(len(agencies))] + " NOTIFIED."
	case 1:
		narrative += ". LEO NOTIFICATION NOT REPORTED."
	default:
		narrative += "."
	}

	// A slice of rows carry no airport mention, so the geocode fallback and
	// the unresolved path both show up in generated runs.
	if rng.Intn(10) == 0 {
		narrative = "UAS SIGHTED HOVERING OVER A RESIDENTIAL AREA."
	}

	return []string{date, s.city, s.state, narrative}
}
