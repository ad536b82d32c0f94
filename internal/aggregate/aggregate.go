// Package aggregate maintains the in-memory aggregate of classified sample
// points: it drives paged fetches against the backend, validates and merges
// each page, and exposes a consistent snapshot to the HTTP surface.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/DEMONNN69/hmpi-map-engine/internal/observability"
)

// Status describes where the aggregate is in its load lifecycle.
type Status string

const (
	// StatusIdle means no page has been requested yet.
	StatusIdle Status = "idle"
	// StatusLoading means a fetch is in flight or more pages remain.
	StatusLoading Status = "loading"
	// StatusComplete means every page for the current filter merged cleanly.
	StatusComplete Status = "complete"
	// StatusPartial means some pages merged before a page failed.
	StatusPartial Status = "partial"
	// StatusErrored means the very first page failed; nothing was merged.
	StatusErrored Status = "errored"
)

// PageSource fetches one page of classified map data for a filter.
type PageSource interface {
	FetchMapPage(ctx context.Context, filter domain.MapFilter, page int) (domain.MapPage, error)
}

// Exporter publishes merged points downstream. Optional; a nil Exporter
// disables export.
type Exporter interface {
	ExportBatch(ctx context.Context, points []domain.SamplePoint) error
}

// Snapshot is a point-in-time copy of the aggregate, safe to read after the
// aggregator moves on.
type Snapshot struct {
	Points         []domain.SamplePoint
	AvailableYears []int
	SelectedYear   *int
	Status         Status
	CurrentPage    int
	TotalPages     int
	TotalRecords   int

	// WithYear counts points that resolved to a year bucket.
	WithYear int

	// Records dropped during merges for the current filter.
	SkippedInvalid       int
	FailedClassification int

	// Warning is set when Status is partial or errored.
	Warning string

	Stats domain.MapStats
}

// errStaleScan marks a page response that arrived after the filter changed.
// It is a clean exit for the scan that fetched it, not a failure.
var errStaleScan = errors.New("stale scan result")

// Aggregator accumulates classified sample points across paged fetches. All
// state transitions are guarded by mu; a generation counter invalidates
// responses from scans that outlived their filter.
type Aggregator struct {
	source   PageSource
	exporter Exporter
	logger   *slog.Logger
	metrics  *observability.Metrics

	pageSize int
	fields   string

	mu           sync.Mutex
	baseCtx      context.Context
	generation   uint64
	scanCancel   context.CancelFunc
	scanActive   bool
	selectedYear *int
	status       Status

	points   []domain.SamplePoint
	index    map[int64]int // sample ID -> position in points
	scoreSum float64
	dist     domain.QualityDistribution
	yearSet  map[int]struct{}

	skippedInvalid int
	failedClassify int
	warning        string

	currentPage  int
	totalPages   int
	totalRecords int

	everMerged bool
}

// New creates an Aggregator over the given page source. exporter may be nil.
func New(source PageSource, exporter Exporter, logger *slog.Logger, metrics *observability.Metrics, pageSize int, fields string) *Aggregator {
	return &Aggregator{
		source:   source,
		exporter: exporter,
		logger:   logger,
		metrics:  metrics,
		pageSize: pageSize,
		fields:   fields,
		status:   StatusIdle,
		index:    make(map[int64]int),
		yearSet:  make(map[int]struct{}),
	}
}

// Start launches the initial full scan in the background and remembers ctx as
// the base context for scans triggered by later filter changes.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	a.baseCtx = ctx
	a.mu.Unlock()

	go func() {
		if err := a.RunFullScan(ctx); err != nil {
			a.logger.Error("initial scan failed", "error", err)
		}
	}()
}

// SetYear changes the year filter. The aggregate is cleared, any in-flight
// scan is cancelled, and a fresh scan starts if the aggregator was started.
// A nil year means all years. Setting the already-selected year is a no-op.
func (a *Aggregator) SetYear(year *int) {
	a.mu.Lock()
	if intPtrEqual(year, a.selectedYear) {
		a.mu.Unlock()
		return
	}
	a.selectedYear = year
	a.invalidateLocked()
	base := a.baseCtx
	a.mu.Unlock()

	a.logger.Info("year filter changed", "year", yearLabel(year))
	a.respawn(base)
}

// Retry clears the aggregate and rescans with the current filter. Used to
// recover from partial or errored loads.
func (a *Aggregator) Retry() {
	a.mu.Lock()
	a.invalidateLocked()
	base := a.baseCtx
	year := a.selectedYear
	a.mu.Unlock()

	a.logger.Info("retrying scan", "year", yearLabel(year))
	a.respawn(base)
}

func (a *Aggregator) respawn(base context.Context) {
	if base == nil {
		return
	}
	go func() {
		if err := a.RunFullScan(base); err != nil {
			a.logger.Error("scan failed", "error", err)
		}
	}()
}

// invalidateLocked bumps the generation, cancels any in-flight scan, and
// resets the accumulated aggregate. Caller holds mu.
func (a *Aggregator) invalidateLocked() {
	a.generation++
	if a.scanCancel != nil {
		a.scanCancel()
		a.scanCancel = nil
	}
	a.points = nil
	a.index = make(map[int64]int)
	a.scoreSum = 0
	a.dist = domain.QualityDistribution{}
	a.skippedInvalid = 0
	a.failedClassify = 0
	a.warning = ""
	a.currentPage = 0
	a.totalPages = 0
	a.totalRecords = 0
	a.status = StatusLoading
}

// CheckReadiness returns nil once at least one page has merged, or an error
// describing why the service is not yet ready.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.everMerged {
		return errors.New("aggregator has not merged any pages yet")
	}
	return nil
}

// Snapshot returns a consistent copy of the aggregate.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	points := make([]domain.SamplePoint, len(a.points))
	copy(points, a.points)

	withYear := 0
	for i := range a.points {
		if a.points[i].Year != 0 {
			withYear++
		}
	}

	years := make([]int, 0, len(a.yearSet))
	for y := range a.yearSet {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	var selected *int
	if a.selectedYear != nil {
		y := *a.selectedYear
		selected = &y
	}

	avg := 0.0
	if len(a.points) > 0 {
		avg = a.scoreSum / float64(len(a.points))
	}

	return Snapshot{
		Points:               points,
		AvailableYears:       years,
		SelectedYear:         selected,
		Status:               a.status,
		CurrentPage:          a.currentPage,
		TotalPages:           a.totalPages,
		TotalRecords:         a.totalRecords,
		WithYear:             withYear,
		SkippedInvalid:       a.skippedInvalid,
		FailedClassification: a.failedClassify,
		Warning:              a.warning,
		Stats: domain.MapStats{
			TotalSamples:        len(a.points),
			AverageHMPI:         avg,
			QualityDistribution: a.dist,
		},
	}
}

// LoadNextPage fetches and merges the single next page for the current
// filter. It is the manual alternative to a full scan, used when the caller
// paces pagination itself. Returns an error while a full scan is in flight.
func (a *Aggregator) LoadNextPage(ctx context.Context) error {
	a.mu.Lock()
	if a.scanActive {
		a.mu.Unlock()
		return errors.New("a full scan is in progress")
	}
	gen := a.generation
	filter := a.filterLocked()
	page := a.currentPage + 1
	if a.totalPages > 0 && page > a.totalPages {
		a.mu.Unlock()
		return nil
	}
	a.status = StatusLoading
	a.mu.Unlock()

	mp, err := a.source.FetchMapPage(ctx, filter, page)
	if err != nil {
		a.failScan(gen, page, err)
		return err
	}
	a.metrics.PagesFetched.Inc()

	added, done, err := a.mergePage(gen, page, mp)
	if errors.Is(err, errStaleScan) {
		return nil
	}
	if err != nil {
		a.failScan(gen, page, err)
		return err
	}
	a.export(ctx, added)

	if done {
		a.completeScan(gen)
	}
	return nil
}

// mergePage validates every record on the page, then applies the page to the
// aggregate as a unit. A record with a missing score fails the whole page;
// invalid coordinates and unclassifiable scores skip the record and count it.
func (a *Aggregator) mergePage(gen uint64, page int, mp domain.MapPage) (added []domain.SamplePoint, done bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		a.metrics.StaleDropped.Inc()
		a.logger.Warn("dropping stale page response", "page", page)
		return nil, false, errStaleScan
	}

	var skipped, unclassifiable int
	added = make([]domain.SamplePoint, 0, len(mp.Data))
	for _, raw := range mp.Data {
		p, perr := domain.NewSamplePoint(raw)
		switch {
		case perr == nil:
			added = append(added, p)
		case errors.Is(perr, domain.ErrInvalidCoordinates):
			skipped++
		case errors.Is(perr, domain.ErrInvalidScore):
			unclassifiable++
		case errors.Is(perr, domain.ErrMissingScore):
			return nil, false, fmt.Errorf("page %d record %d: %w", page, raw.ID, perr)
		default:
			return nil, false, fmt.Errorf("page %d record %d: %w", page, raw.ID, perr)
		}
	}

	for _, p := range added {
		if i, ok := a.index[p.ID]; ok {
			old := a.points[i]
			a.scoreSum += p.Score - old.Score
			a.dist.Add(p.Category)
			a.subtract(old.Category)
			a.points[i] = p
		} else {
			a.index[p.ID] = len(a.points)
			a.points = append(a.points, p)
			a.scoreSum += p.Score
			a.dist.Add(p.Category)
		}
		if a.selectedYear == nil && p.Year != 0 {
			a.yearSet[p.Year] = struct{}{}
		}
	}

	a.skippedInvalid += skipped
	a.failedClassify += unclassifiable
	a.metrics.PointsMerged.Add(float64(len(added)))
	a.metrics.ValidationSkips.Add(float64(skipped))
	a.metrics.ClassifyFailures.Add(float64(unclassifiable))

	if page > a.currentPage {
		a.currentPage = page
	}
	a.totalPages = mp.Pagination.TotalPages
	a.totalRecords = mp.Pagination.TotalRecords
	a.everMerged = true

	done = !mp.Pagination.HasNext || (a.totalPages > 0 && page >= a.totalPages)
	return added, done, nil
}

func (a *Aggregator) subtract(s domain.Severity) {
	switch s {
	case domain.SeverityExcellent:
		a.dist.Excellent--
	case domain.SeverityGood:
		a.dist.Good--
	case domain.SeverityPoor:
		a.dist.Poor--
	case domain.SeverityVeryPoor:
		a.dist.VeryPoor--
	case domain.SeverityUnsuitable:
		a.dist.Unsuitable--
	}
}

// completeScan marks the aggregate complete unless the filter changed since
// gen was captured.
func (a *Aggregator) completeScan(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return
	}
	a.status = StatusComplete
	a.warning = ""
}

// failScan records a page failure: errored if nothing has merged for this
// filter, partial otherwise.
func (a *Aggregator) failScan(gen uint64, page int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return
	}
	if a.currentPage == 0 {
		a.status = StatusErrored
	} else {
		a.status = StatusPartial
	}
	a.warning = fmt.Sprintf("page %d: %v", page, err)
}

func (a *Aggregator) export(ctx context.Context, points []domain.SamplePoint) {
	if a.exporter == nil || len(points) == 0 {
		return
	}
	if err := a.exporter.ExportBatch(ctx, points); err != nil {
		a.metrics.ExportErrors.Inc()
		a.logger.Warn("export batch failed", "error", err, "batch_size", len(points))
		return
	}
	a.metrics.PointsExported.Add(float64(len(points)))
}

// filterLocked builds the page filter for the current selection. Caller
// holds mu.
func (a *Aggregator) filterLocked() domain.MapFilter {
	var year *int
	if a.selectedYear != nil {
		y := *a.selectedYear
		year = &y
	}
	return domain.MapFilter{Year: year, Fields: a.fields, PageSize: a.pageSize}
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func yearLabel(year *int) any {
	if year == nil {
		return "all"
	}
	return *year
}
