package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DEMONNN69/hmpi-map-engine/internal/adapter/httpadapter"
	"github.com/DEMONNN69/hmpi-map-engine/internal/aggregate"
	"github.com/DEMONNN69/hmpi-map-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAggregate struct {
	snap     aggregate.Snapshot
	ready    error
	setYears []*int
	retries  int
}

func (m *mockAggregate) Snapshot() aggregate.Snapshot         { return m.snap }
func (m *mockAggregate) SetYear(year *int)                    { m.setYears = append(m.setYears, year) }
func (m *mockAggregate) Retry()                               { m.retries++ }
func (m *mockAggregate) CheckReadiness(context.Context) error { return m.ready }

type mockBrowser struct {
	list   domain.SampleList
	result domain.YearCalculationResult
	err    error
	gotReq domain.YearCalculationRequest
	gotQ   domain.SampleQuery
}

func (m *mockBrowser) ListSamples(_ context.Context, q domain.SampleQuery) (domain.SampleList, error) {
	m.gotQ = q
	return m.list, m.err
}

func (m *mockBrowser) CalculateByYear(_ context.Context, req domain.YearCalculationRequest) (domain.YearCalculationResult, error) {
	m.gotReq = req
	return m.result, m.err
}

func newTestServer(agg *mockAggregate, browser httpadapter.SampleBrowser) *httpadapter.Server {
	return httpadapter.NewServer(":0", agg, browser, slog.Default())
}

func doRequest(t *testing.T, s *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func makePoint(id int64, score float64) domain.SamplePoint {
	c, err := domain.Classify(score)
	if err != nil {
		panic(err)
	}
	return domain.SamplePoint{
		ID:            id,
		Latitude:      26.9,
		Longitude:     75.8,
		Score:         score,
		Category:      c.Category,
		Color:         c.Color,
		HeatIntensity: c.HeatIntensity,
	}
}

// --- tests ---

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(&mockAggregate{}, nil)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Readyz(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		agg := &mockAggregate{ready: errors.New("no pages merged")}
		rec := doRequest(t, newTestServer(agg, nil), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready", func(t *testing.T) {
		rec := doRequest(t, newTestServer(&mockAggregate{}, nil), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServer_Snapshot(t *testing.T) {
	year := 2023
	agg := &mockAggregate{snap: aggregate.Snapshot{
		Points:         []domain.SamplePoint{makePoint(1, 30)},
		AvailableYears: []int{2023, 2022},
		SelectedYear:   &year,
		Status:         aggregate.StatusComplete,
		CurrentPage:    3,
		TotalPages:     3,
		TotalRecords:   1,
	}}

	rec := doRequest(t, newTestServer(agg, nil), http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Points         []domain.SamplePoint `json:"points"`
		AvailableYears []int                `json:"available_years"`
		SelectedYear   *int                 `json:"selected_year"`
		Status         string               `json:"status"`
		Pagination     struct {
			CurrentPage int `json:"current_page"`
			TotalPages  int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Points, 1)
	assert.Equal(t, int64(1), body.Points[0].ID)
	assert.Equal(t, []int{2023, 2022}, body.AvailableYears)
	require.NotNil(t, body.SelectedYear)
	assert.Equal(t, 2023, *body.SelectedYear)
	assert.Equal(t, "complete", body.Status)
	assert.Equal(t, 3, body.Pagination.TotalPages)
}

func TestServer_Stats_OmitsPoints(t *testing.T) {
	agg := &mockAggregate{snap: aggregate.Snapshot{
		Points: []domain.SamplePoint{makePoint(1, 30)},
		Status: aggregate.StatusPartial,
		Stats: domain.MapStats{
			TotalSamples: 1,
			AverageHMPI:  30,
			QualityDistribution: domain.QualityDistribution{
				Good: 1,
			},
		},
		Warning: "page 2: backend unavailable",
	}}

	rec := doRequest(t, newTestServer(agg, nil), http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "points")
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, "page 2: backend unavailable", body["warning"])

	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 30.0, stats["average_hmpi"], 1e-9)
}

func TestServer_Heatmap(t *testing.T) {
	agg := &mockAggregate{snap: aggregate.Snapshot{
		Points: []domain.SamplePoint{makePoint(1, 30), makePoint(2, 120)},
	}}

	rec := doRequest(t, newTestServer(agg, nil), http.MethodGet, "/heatmap", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var triples [][3]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &triples))
	require.Len(t, triples, 2)
	assert.Equal(t, [3]float64{26.9, 75.8, 0.05}, triples[0])
	assert.Equal(t, [3]float64{26.9, 75.8, 0.7}, triples[1])
}

func TestServer_Markers_EmptyAggregateIsEmptyArray(t *testing.T) {
	rec := doRequest(t, newTestServer(&mockAggregate{}, nil), http.MethodGet, "/markers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestServer_Hotspots(t *testing.T) {
	agg := &mockAggregate{snap: aggregate.Snapshot{
		Points: []domain.SamplePoint{
			makePoint(1, 150),
			makePoint(2, 30),
			makePoint(3, 101),
			makePoint(4, 100), // boundary: not a hotspot
			makePoint(5, 200),
		},
	}}
	s := newTestServer(agg, nil)

	rec := doRequest(t, s, http.MethodGet, "/hotspots", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var hotspots []domain.SamplePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotspots))
	require.Len(t, hotspots, 3)
	assert.Equal(t, int64(5), hotspots[0].ID)
	assert.Equal(t, int64(1), hotspots[1].ID)
	assert.Equal(t, int64(3), hotspots[2].ID)

	rec = doRequest(t, s, http.MethodGet, "/hotspots?limit=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotspots))
	require.Len(t, hotspots, 1)
	assert.Equal(t, int64(5), hotspots[0].ID)

	rec = doRequest(t, s, http.MethodGet, "/hotspots?limit=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SetYear(t *testing.T) {
	agg := &mockAggregate{}
	s := newTestServer(agg, nil)

	rec := doRequest(t, s, http.MethodPost, "/filter/year", `{"year": 2023}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, agg.setYears, 1)
	require.NotNil(t, agg.setYears[0])
	assert.Equal(t, 2023, *agg.setYears[0])

	// null clears the filter back to all years.
	rec = doRequest(t, s, http.MethodPost, "/filter/year", `{"year": null}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, agg.setYears, 2)
	assert.Nil(t, agg.setYears[1])

	rec = doRequest(t, s, http.MethodPost, "/filter/year", `{"year": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Retry(t *testing.T) {
	agg := &mockAggregate{}
	rec := doRequest(t, newTestServer(agg, nil), http.MethodPost, "/retry", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, agg.retries)
}

func TestServer_Samples(t *testing.T) {
	browser := &mockBrowser{list: domain.SampleList{Count: 3}}
	s := newTestServer(&mockAggregate{}, browser)

	rec := doRequest(t, s, http.MethodGet, "/samples?search=jaipur&year=2022&page=2&page_size=25", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "jaipur", browser.gotQ.Search)
	require.NotNil(t, browser.gotQ.Year)
	assert.Equal(t, 2022, *browser.gotQ.Year)
	assert.Equal(t, 2, browser.gotQ.Page)
	assert.Equal(t, 25, browser.gotQ.PageSize)

	var list domain.SampleList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Count)
}

func TestServer_Samples_AuthFailureMapsTo401(t *testing.T) {
	browser := &mockBrowser{err: domain.ErrAuthRequired}
	rec := doRequest(t, newTestServer(&mockAggregate{}, browser), http.MethodGet, "/samples", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CalculateByYear(t *testing.T) {
	browser := &mockBrowser{result: domain.YearCalculationResult{TotalCalculated: 10, SuccessRate: 100}}
	s := newTestServer(&mockAggregate{}, browser)

	rec := doRequest(t, s, http.MethodPost, "/calculations/year", `{"year": 2023, "force_recalculate": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2023, browser.gotReq.Year)
	assert.True(t, browser.gotReq.ForceRecalculate)

	rec = doRequest(t, s, http.MethodPost, "/calculations/year", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_BrowserRoutesDisabledWithoutBrowser(t *testing.T) {
	rec := doRequest(t, newTestServer(&mockAggregate{}, nil), http.MethodGet, "/samples", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
