// Command validate performs data integrity checks across the mock fixtures:
// the paged map-data JSON and the classified point dump genmock produces. It
// verifies classification correctness, coordinate validity, deduplication,
// year resolution, and pagination consistency between the two.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -pages-dir data/mock/pages \
//	  -points-json data/mock/classified_points.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	pagesDir := flag.String("pages-dir", "", "directory containing paged map-data JSON fixtures")
	pointsJSON := flag.String("points-json", "", "path to classified point dump")
	flag.Parse()

	if *pagesDir == "" || *pointsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*pagesDir, *pointsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(pagesDir, pointsPath string) int {
	fmt.Println("=== Classified Point Integrity Validation ===")
	fmt.Println()

	pages, err := loadPages(pagesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load page fixtures: %v\n", err)
		return 1
	}

	points, err := loadPoints(pointsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load point dump: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateClassification(points),
		validateCoordinates(points),
		validateDeduplication(points),
		validateYears(points),
		validatePagination(pages, points),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d pages, %d raw rows, %d classified points\n",
		len(pages), countRaw(pages), len(points))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadPages(dir string) ([]domain.MapPage, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "map_data_page_*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no page fixtures in %s", dir)
	}
	sort.Strings(paths)

	pages := make([]domain.MapPage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var page domain.MapPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func loadPoints(path string) ([]domain.SamplePoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var points []domain.SamplePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func countRaw(pages []domain.MapPage) int {
	n := 0
	for i := range pages {
		n += len(pages[i].Data)
	}
	return n
}

// ── Phase 1: Classification ──
// Re-runs classification on every point's score and compares the cached
// category, color, and heat intensity.

func validateClassification(points []domain.SamplePoint) *phase {
	p := &phase{name: "Phase 1: Classification (dual scale)"}

	for i := range points {
		pt := &points[i]
		c, err := domain.Classify(pt.Score)
		if err != nil {
			p.errorf("point %d (score %g): unclassifiable: %v", pt.ID, pt.Score, err)
			continue
		}
		if pt.Category != c.Category {
			p.errorf("point %d (score %g): category %q, expected %q", pt.ID, pt.Score, pt.Category, c.Category)
		}
		if pt.Color != c.Color {
			p.errorf("point %d (score %g): color %q, expected %q", pt.ID, pt.Score, pt.Color, c.Color)
		}
		if !floatEq(pt.HeatIntensity, c.HeatIntensity) {
			p.errorf("point %d (score %g): heat intensity %g, expected %g", pt.ID, pt.Score, pt.HeatIntensity, c.HeatIntensity)
		}
		if pt.Color != pt.Category.Color() {
			p.errorf("point %d: color %q does not match category %q", pt.ID, pt.Color, pt.Category)
		}
	}
	return p
}

// ── Phase 2: Coordinates ──

func validateCoordinates(points []domain.SamplePoint) *phase {
	p := &phase{name: "Phase 2: Coordinate validity"}

	for i := range points {
		pt := &points[i]
		if !domain.ValidCoordinates(pt.Latitude, pt.Longitude) {
			p.errorf("point %d: coordinates (%g, %g) out of range", pt.ID, pt.Latitude, pt.Longitude)
		}
	}
	return p
}

// ── Phase 3: Deduplication ──

func validateDeduplication(points []domain.SamplePoint) *phase {
	p := &phase{name: "Phase 3: Deduplication (unique ids)"}

	seen := map[int64]int{}
	for i := range points {
		if prev, ok := seen[points[i].ID]; ok {
			p.errorf("point %d appears at index %d and %d", points[i].ID, prev, i)
			continue
		}
		seen[points[i].ID] = i
	}
	return p
}

// ── Phase 4: Year resolution ──

func validateYears(points []domain.SamplePoint) *phase {
	p := &phase{name: "Phase 4: Year resolution"}

	maxYear := time.Now().Year() + 1
	for i := range points {
		pt := &points[i]
		// Year 0 means unresolved, which is allowed.
		if pt.Year != 0 && (pt.Year < 1900 || pt.Year > maxYear) {
			p.errorf("point %d: year %d outside [1900, %d]", pt.ID, pt.Year, maxYear)
		}
		if pt.FetchedAt.IsZero() {
			p.errorf("point %d: fetched_at is zero", pt.ID)
		}
	}
	return p
}

// ── Phase 5: Pagination consistency ──
// The page fixtures and the point dump must describe the same dataset: every
// classified point traces to a raw row, skips are explainable, and every
// page's envelope is internally consistent.

func validatePagination(pages []domain.MapPage, points []domain.SamplePoint) *phase {
	p := &phase{name: "Phase 5: Pagination consistency"}

	totalRaw := countRaw(pages)
	rawByID := map[int64]domain.RawPoint{}
	for i := range pages {
		page := &pages[i]
		if page.Pagination.CurrentPage != i+1 {
			p.errorf("page %d: current_page is %d", i+1, page.Pagination.CurrentPage)
		}
		if page.Pagination.TotalPages != len(pages) {
			p.errorf("page %d: total_pages is %d, expected %d", i+1, page.Pagination.TotalPages, len(pages))
		}
		if page.Pagination.TotalRecords != totalRaw {
			p.errorf("page %d: total_records is %d, expected %d", i+1, page.Pagination.TotalRecords, totalRaw)
		}
		if wantNext := i+1 < len(pages); page.Pagination.HasNext != wantNext {
			p.errorf("page %d: has_next is %v", i+1, page.Pagination.HasNext)
		}
		for _, raw := range page.Data {
			rawByID[raw.ID] = raw
		}
	}

	// Every classified point must come from a raw row with matching score.
	for i := range points {
		pt := &points[i]
		raw, ok := rawByID[pt.ID]
		if !ok {
			p.errorf("point %d: no raw row in page fixtures", pt.ID)
			continue
		}
		if raw.HMPIValue == nil || !floatEq(*raw.HMPIValue, pt.Score) {
			p.errorf("point %d: score %g does not match raw hmpi_value", pt.ID, pt.Score)
		}
	}

	// Every raw row either classified or would be skipped by the engine.
	classified := map[int64]bool{}
	for i := range points {
		classified[points[i].ID] = true
	}
	for id, raw := range rawByID {
		if classified[id] {
			continue
		}
		if _, err := domain.NewSamplePoint(raw); err == nil {
			p.errorf("raw row %d: classifiable but missing from point dump", id)
		} else if errors.Is(err, domain.ErrMissingScore) {
			p.errorf("raw row %d: missing hmpi_value, would fail the whole page", id)
		}
	}

	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
