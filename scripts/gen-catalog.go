//go:build ignore

// Package main generates a synthetic curated catalog for load testing the
// local provider and the cache tiers.
// Usage: go run scripts/gen-catalog.go -entries 500 -output testdata/catalog-large.yaml
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numEntries = flag.Int("entries", 500, "Number of catalog entries to generate")
	outputPath = flag.String("output", "testdata/catalog-large.yaml", "Output file")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"Legal Tech", "Compliance", "Datenschutz", "Kanzleimanagement",
	"Regulatorik", "Insolvenzrecht", "Arbeitsrecht", "Steuerrecht",
	"Vergaberecht", "Wirtschaftsstrafrecht",
}

var formats = []string{
	"Summit", "Kongress", "Jahrestagung", "Forum", "Konferenz", "Fachtagung",
}

var cities = []struct {
	name    string
	country string
}{
	{"Berlin", "DE"}, {"Frankfurt", "DE"}, {"München", "DE"},
	{"Hamburg", "DE"}, {"Köln", "DE"}, {"Stuttgart", "DE"},
	{"Düsseldorf", "DE"}, {"Leipzig", "DE"}, {"Wien", "AT"},
	{"Zürich", "CH"}, {"Amsterdam", "NL"}, {"Paris", "FR"},
}

var descriptions = []string{
	"Praxiskonferenz mit über %d Speakern und Workshops",
	"Jahrestreffen der Branche mit %d Referenten",
	"Fachprogramm mit %d Vorträgen zu aktuellen Entwicklungen",
	"Zwei Tage Programm, %d Speaker, Ausstellung und Networking",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	var b strings.Builder
	b.WriteString("# Synthetic catalog generated by scripts/gen-catalog.go. Do not curate by hand.\n")
	b.WriteString("entries:\n")

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < *numEntries; i++ {
		topic := topics[rng.Intn(len(topics))]
		format := formats[rng.Intn(len(formats))]
		city := cities[rng.Intn(len(cities))]
		date := base.AddDate(0, 0, rng.Intn(365)).Format("2006-01-02")
		speakers := 10 + rng.Intn(90)

		slug := strings.ToLower(strings.ReplaceAll(topic, " ", "-"))
		host := fmt.Sprintf("www.%s-%s-%03d.de", slug, strings.ToLower(format), i)

		fmt.Fprintf(&b, "  - url: https://%s/programm\n", host)
		fmt.Fprintf(&b, "    title: %s %s %03d\n", topic, format, i)
		fmt.Fprintf(&b, "    description: %s\n", fmt.Sprintf(descriptions[rng.Intn(len(descriptions))], speakers))
		fmt.Fprintf(&b, "    country: %s\n", city.country)
		fmt.Fprintf(&b, "    city: %s\n", city.name)
		fmt.Fprintf(&b, "    date: %q\n", date)
		fmt.Fprintf(&b, "    tags: [%s, %s]\n", strings.ToLower(strings.Fields(topic)[0]), strings.ToLower(format))
	}

	if err := os.WriteFile(*outputPath, []byte(b.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d entries to %s\n", *numEntries, *outputPath)
}
