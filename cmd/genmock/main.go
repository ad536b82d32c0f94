// Command genmock reads a ground-water samples CSV and generates mock
// map-data fixtures: paged /map-data/ responses for a stub backend, plus the
// classified point dump those pages aggregate into. It uses the actual domain
// package so fixture output matches real engine behavior.
//
// Expected CSV header:
//
//	s_no,location,state,district,latitude,longitude,year,hmpi
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/ground_water_samples.csv \
//	  -pages-out data/mock/pages \
//	  -points-out data/mock/classified_points.json \
//	  -page-size 500
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "path to ground-water samples CSV")
	pagesOut := flag.String("pages-out", "", "output directory for paged map-data JSON fixtures")
	pointsOut := flag.String("points-out", "", "output path for classified point dump")
	pageSize := flag.Int("page-size", 500, "records per page")
	flag.Parse()

	if *csvPath == "" || *pagesOut == "" || *pointsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -pages-out, -points-out")
	}
	if *pageSize < 1 {
		return fmt.Errorf("-page-size must be positive")
	}

	// Set a fixed clock for reproducible fetched_at timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.January, 15, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	raws, err := readSamplesCSV(*csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *csvPath, err)
	}
	log.Printf("read %d sample rows", len(raws))

	// Classify through the real domain code; rows the engine would skip are
	// reported but still emitted in the pages, so fixtures exercise the skip
	// paths too.
	points := make([]domain.SamplePoint, 0, len(raws))
	var skipped, unclassifiable int
	for _, raw := range raws {
		p, err := domain.NewSamplePoint(raw)
		switch {
		case err == nil:
			points = append(points, p)
		case errors.Is(err, domain.ErrInvalidCoordinates):
			skipped++
		default:
			unclassifiable++
		}
	}
	log.Printf("classified %d points (%d skipped for coordinates, %d unclassifiable)",
		len(points), skipped, unclassifiable)

	pages := paginate(raws, points, *pageSize)
	for i, page := range pages {
		path := filepath.Join(*pagesOut, fmt.Sprintf("map_data_page_%d.json", i+1))
		if err := writeJSON(path, page); err != nil {
			return fmt.Errorf("writing page fixture: %w", err)
		}
	}
	log.Printf("wrote %d page fixtures to %s", len(pages), *pagesOut)

	if err := writeJSON(*pointsOut, points); err != nil {
		return fmt.Errorf("writing point dump: %w", err)
	}
	log.Printf("wrote classified point dump: %s", *pointsOut)

	printStats(points)
	return nil
}

func readSamplesCSV(path string) ([]domain.RawPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	raws := make([]domain.RawPoint, 0, len(rows)-1)
	for n, row := range rows[1:] {
		id, err := strconv.ParseInt(get(row, colIdx, "s_no"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad s_no: %w", n+2, err)
		}

		raw := domain.RawPoint{
			ID:           id,
			LocationName: get(row, colIdx, "location"),
			State:        get(row, colIdx, "state"),
			District:     get(row, colIdx, "district"),
			Latitude:     parseFloat(get(row, colIdx, "latitude")),
			Longitude:    parseFloat(get(row, colIdx, "longitude")),
			HMPIValue:    parseFloat(get(row, colIdx, "hmpi")),
		}
		if year, err := strconv.Atoi(get(row, colIdx, "year")); err == nil {
			raw.Year = &year
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// paginate slices the raw rows into /map-data/ page envelopes. Stats cover
// the classified points only, the way the backend reports them.
func paginate(raws []domain.RawPoint, points []domain.SamplePoint, pageSize int) []domain.MapPage {
	stats := buildStats(points)

	totalPages := (len(raws) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	pages := make([]domain.MapPage, 0, totalPages)
	for p := 0; p < totalPages; p++ {
		lo := p * pageSize
		hi := min(lo+pageSize, len(raws))
		pages = append(pages, domain.MapPage{
			Data:  raws[lo:hi],
			Stats: stats,
			Pagination: domain.Pagination{
				CurrentPage:  p + 1,
				TotalPages:   totalPages,
				TotalRecords: len(raws),
				HasNext:      p+1 < totalPages,
				HasPrevious:  p > 0,
				PageSize:     pageSize,
			},
		})
	}
	return pages
}

func buildStats(points []domain.SamplePoint) domain.MapStats {
	var dist domain.QualityDistribution
	var sum float64
	for _, p := range points {
		dist.Add(p.Category)
		sum += p.Score
	}
	avg := 0.0
	if len(points) > 0 {
		avg = sum / float64(len(points))
	}
	return domain.MapStats{
		TotalSamples:        len(points),
		AverageHMPI:         avg,
		QualityDistribution: dist,
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(points []domain.SamplePoint) {
	stats := buildStats(points)

	yearCounts := map[int]int{}
	var hotspots int
	var maxScore float64
	for _, p := range points {
		yearCounts[p.Year]++
		if p.Score > 100 {
			hotspots++
		}
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total classified: %d\n", stats.TotalSamples)
	fmt.Printf("Average HMPI: %.4f\n", stats.AverageHMPI)
	d := stats.QualityDistribution
	fmt.Printf("By category: excellent=%d, good=%d, poor=%d, very_poor=%d, unsuitable=%d\n",
		d.Excellent, d.Good, d.Poor, d.VeryPoor, d.Unsuitable)
	fmt.Printf("Hotspots (score > 100): %d\n", hotspots)
	fmt.Printf("Max score: %g\n", maxScore)

	fmt.Printf("By year:")
	for year, count := range yearCounts {
		if year == 0 {
			fmt.Printf(" unresolved=%d", count)
			continue
		}
		fmt.Printf(" %d=%d", year, count)
	}
	fmt.Println()
}
