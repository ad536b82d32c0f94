package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatp(v float64) *float64 { return &v }

func TestNewSamplePoint(t *testing.T) {
	frozen := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	t.Run("valid record", func(t *testing.T) {
		raw := RawPoint{
			ID:           17,
			Latitude:     floatp(19.076),
			Longitude:    floatp(72.8777),
			HMPIValue:    floatp(63.2),
			LocationName: "Borehole 17",
			Year:         intp(2023),
		}

		p, err := NewSamplePoint(raw)
		require.NoError(t, err)

		assert.Equal(t, int64(17), p.ID)
		assert.Equal(t, 19.076, p.Latitude)
		assert.Equal(t, 63.2, p.Score)
		assert.Equal(t, 2023, p.Year)
		assert.Equal(t, SeverityPoor, p.Category)
		assert.Equal(t, "#ffa500", p.Color)
		assert.Equal(t, 0.3, p.HeatIntensity)
		assert.Equal(t, frozen, p.FetchedAt)
	})

	t.Run("missing latitude", func(t *testing.T) {
		raw := RawPoint{ID: 1, Longitude: floatp(10), HMPIValue: floatp(1)}
		_, err := NewSamplePoint(raw)
		require.ErrorIs(t, err, ErrInvalidCoordinates)
	})

	t.Run("NaN latitude", func(t *testing.T) {
		raw := RawPoint{ID: 1, Latitude: floatp(math.NaN()), Longitude: floatp(10), HMPIValue: floatp(1)}
		_, err := NewSamplePoint(raw)
		require.ErrorIs(t, err, ErrInvalidCoordinates)
	})

	t.Run("out of range longitude", func(t *testing.T) {
		raw := RawPoint{ID: 1, Latitude: floatp(10), Longitude: floatp(181), HMPIValue: floatp(1)}
		_, err := NewSamplePoint(raw)
		require.ErrorIs(t, err, ErrInvalidCoordinates)
	})

	t.Run("missing score", func(t *testing.T) {
		raw := RawPoint{ID: 1, Latitude: floatp(10), Longitude: floatp(10)}
		_, err := NewSamplePoint(raw)
		require.ErrorIs(t, err, ErrMissingScore)
	})

	t.Run("negative score", func(t *testing.T) {
		raw := RawPoint{ID: 1, Latitude: floatp(10), Longitude: floatp(10), HMPIValue: floatp(-2)}
		_, err := NewSamplePoint(raw)
		require.ErrorIs(t, err, ErrInvalidScore)
	})
}

func TestSamplePoint_JSONRoundTrip(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	p, err := NewSamplePoint(RawPoint{
		ID:           9,
		Latitude:     floatp(26.9124),
		Longitude:    floatp(75.7873),
		HMPIValue:    floatp(130.5),
		LocationName: "Sanganer",
		State:        "Rajasthan",
		District:     "Jaipur",
		Year:         intp(2023),
	})
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quality_category":"Unsuitable"`)

	var roundtrip SamplePoint
	require.NoError(t, json.Unmarshal(data, &roundtrip))
	if diff := cmp.Diff(p, roundtrip); diff != "" {
		t.Fatalf("roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestQualityDistribution(t *testing.T) {
	var d QualityDistribution
	for _, s := range []Severity{
		SeverityExcellent, SeverityExcellent, SeverityGood,
		SeverityPoor, SeverityVeryPoor, SeverityUnsuitable,
	} {
		d.Add(s)
	}

	assert.Equal(t, 2, d.Excellent)
	assert.Equal(t, 1, d.Good)
	assert.Equal(t, 1, d.Poor)
	assert.Equal(t, 1, d.VeryPoor)
	assert.Equal(t, 1, d.Unsuitable)
	assert.Equal(t, 6, d.Total())
}

func TestYearCalculationResult_ComputedSuccessRate(t *testing.T) {
	r := YearCalculationResult{
		TotalCalculated:        100,
		TotalFailedCalculation: 5,
		FailedCalculations: []CalculationFailure{
			{SampleID: "s1", Error: "no metals"}, {SampleID: "s2", Error: "no metals"},
			{SampleID: "s3", Error: "parse"}, {SampleID: "s4", Error: "parse"},
			{SampleID: "s5", Error: "parse"},
		},
	}

	assert.InDelta(t, 95.0, r.ComputedSuccessRate(), 1e-9)
	assert.Len(t, r.FailedCalculations, 5)

	assert.Zero(t, YearCalculationResult{}.ComputedSuccessRate())
}
