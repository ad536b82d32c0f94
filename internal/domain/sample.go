package domain

import "time"

// RawPoint is the wire form of one record from GET /map-data/. Optional
// columns are pointers so that "absent" and "zero" stay distinguishable.
type RawPoint struct {
	ID              int64    `json:"id"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	HMPIValue       *float64 `json:"hmpi_value"`
	LocationName    string   `json:"location_name,omitempty"`
	QualityCategory string   `json:"quality_category,omitempty"`
	State           string   `json:"state,omitempty"`
	District        string   `json:"district,omitempty"`
	Year            *int     `json:"year,omitempty"`
	CalculationYear *int     `json:"calculation_year,omitempty"`
	SampleDate      string   `json:"sample_date,omitempty"`
	ComputedAt      string   `json:"computed_at,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
	Date            string   `json:"date,omitempty"`
}

// SamplePoint is a validated, classified sample in the aggregate. It is
// immutable once built: the derived attributes are computed exactly once by
// NewSamplePoint and never recomputed per render.
type SamplePoint struct {
	ID            int64     `json:"id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Score         float64   `json:"hmpi_value"`
	Year          int       `json:"year,omitempty"` // 0 when unresolved
	LocationName  string    `json:"location_name,omitempty"`
	State         string    `json:"state,omitempty"`
	District      string    `json:"district,omitempty"`
	Category      Severity  `json:"quality_category"`
	Color         string    `json:"color"`
	HeatIntensity float64   `json:"heat_intensity"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// NewSamplePoint validates and classifies a raw record. It returns
// ErrInvalidCoordinates when latitude or longitude is missing or out of range,
// ErrMissingScore when hmpi_value is absent, and ErrInvalidScore when the
// score fails classification.
func NewSamplePoint(raw RawPoint) (SamplePoint, error) {
	if !CoordinatesPresent(raw.Latitude, raw.Longitude) {
		return SamplePoint{}, ErrInvalidCoordinates
	}
	if !ValidCoordinates(*raw.Latitude, *raw.Longitude) {
		return SamplePoint{}, ErrInvalidCoordinates
	}
	if raw.HMPIValue == nil {
		return SamplePoint{}, ErrMissingScore
	}

	c, err := Classify(*raw.HMPIValue)
	if err != nil {
		return SamplePoint{}, err
	}

	year, _ := ResolveYear(raw)

	return SamplePoint{
		ID:            raw.ID,
		Latitude:      *raw.Latitude,
		Longitude:     *raw.Longitude,
		Score:         *raw.HMPIValue,
		Year:          year,
		LocationName:  raw.LocationName,
		State:         raw.State,
		District:      raw.District,
		Category:      c.Category,
		Color:         c.Color,
		HeatIntensity: c.HeatIntensity,
		FetchedAt:     clock.Now(),
	}, nil
}

// MapFilter selects which slice of the backend's computed indices a page
// request covers. A nil Year means all years.
type MapFilter struct {
	Year     *int
	Fields   string // "minimal", "basic", or "full"
	PageSize int
}

// Pagination is the backend's page envelope for /map-data/.
type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalRecords int  `json:"total_records"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	PageSize     int  `json:"page_size"`
}

// QualityDistribution counts points per coarse category.
type QualityDistribution struct {
	Excellent  int `json:"excellent"`
	Good       int `json:"good"`
	Poor       int `json:"poor"`
	VeryPoor   int `json:"very_poor"`
	Unsuitable int `json:"unsuitable"`
}

// Add increments the bucket for the given severity.
func (d *QualityDistribution) Add(s Severity) {
	switch s {
	case SeverityExcellent:
		d.Excellent++
	case SeverityGood:
		d.Good++
	case SeverityPoor:
		d.Poor++
	case SeverityVeryPoor:
		d.VeryPoor++
	case SeverityUnsuitable:
		d.Unsuitable++
	}
}

// Total returns the number of counted points.
func (d QualityDistribution) Total() int {
	return d.Excellent + d.Good + d.Poor + d.VeryPoor + d.Unsuitable
}

// MapStats is the per-page statistics block returned alongside map data.
type MapStats struct {
	TotalSamples        int                 `json:"total_samples"`
	AverageHMPI         float64             `json:"average_hmpi"`
	QualityDistribution QualityDistribution `json:"quality_distribution"`
}

// MapPage is one page of the /map-data/ response.
type MapPage struct {
	Data       []RawPoint `json:"data"`
	Stats      MapStats   `json:"stats"`
	Pagination Pagination `json:"pagination"`
}

// SampleQuery selects a page of raw ground-water samples for table browsing.
type SampleQuery struct {
	Search   string
	Year     *int
	Page     int
	PageSize int
}

// SampleRecord is one row from GET /ground-water-samples/. The backend
// serializes decimal columns as strings; they are passed through untouched
// because the table renderer displays them verbatim.
type SampleRecord struct {
	SerialNo  int    `json:"s_no"`
	State     string `json:"state"`
	District  string `json:"district"`
	Location  string `json:"location"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Year      int    `json:"year"`
}

// SampleList is the standard count/next/previous/results pagination envelope.
type SampleList struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []SampleRecord `json:"results"`
}
