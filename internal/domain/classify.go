package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Severity is the discrete quality category derived from the coarse scale.
// Values are ordered by increasing severity so the mapping from score to
// category is monotonic.
type Severity int

const (
	SeverityExcellent Severity = iota
	SeverityGood
	SeverityPoor
	SeverityVeryPoor
	SeverityUnsuitable
)

var severityNames = [...]string{"Excellent", "Good", "Poor", "Very Poor", "Unsuitable"}

func (s Severity) String() string {
	if s < SeverityExcellent || s > SeverityUnsuitable {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// Color returns the marker color for the category. Colors belong to the
// coarse scale only; the heat layer never uses them.
func (s Severity) Color() string {
	switch s {
	case SeverityExcellent:
		return "#006400" // dark green
	case SeverityGood:
		return "#90ee90" // light green
	case SeverityPoor:
		return "#ffa500" // orange
	case SeverityVeryPoor:
		return "#ff4500" // red-orange
	case SeverityUnsuitable:
		return "#8b0000" // dark red
	}
	return ""
}

// MarshalJSON renders the severity as its display name, matching the
// quality_category strings the backend and dashboard exchange.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the display names produced by MarshalJSON.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range severityNames {
		if n == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown quality category %q", name)
}

// Classification bundles the derived attributes cached on a SamplePoint.
type Classification struct {
	Category      Severity
	Color         string
	HeatIntensity float64
}

// Classify maps an HMPI score to its quality category, marker color, and heat
// intensity. Category and color come from the coarse scale, heat intensity
// from the fine scale; see the package doc for why both exist.
func Classify(score float64) (Classification, error) {
	sev, err := SeverityFor(score)
	if err != nil {
		return Classification{}, err
	}
	heat, err := HeatIntensity(score)
	if err != nil {
		return Classification{}, err
	}
	return Classification{
		Category:      sev,
		Color:         sev.Color(),
		HeatIntensity: heat,
	}, nil
}

// SeverityFor applies the coarse scale (25/50/75/100, left-inclusive bands).
func SeverityFor(score float64) (Severity, error) {
	if err := checkScore(score); err != nil {
		return 0, err
	}
	switch {
	case score < 25:
		return SeverityExcellent, nil
	case score < 50:
		return SeverityGood, nil
	case score < 75:
		return SeverityPoor, nil
	case score < 100:
		return SeverityVeryPoor, nil
	default:
		return SeverityUnsuitable, nil
	}
}

// HeatIntensity applies the fine scale used only for density-map weighting.
// The two interpolated sub-bands keep the weight continuous across [10,25)
// and [75,100) so mid-range scores do not jump a whole band.
func HeatIntensity(score float64) (float64, error) {
	if err := checkScore(score); err != nil {
		return 0, err
	}
	switch {
	case score < 2:
		return 0.0005, nil
	case score < 10:
		return 0.005, nil
	case score < 25:
		return 0.005 + (score-10)/15*(0.05-0.005), nil
	case score < 50:
		return 0.05, nil
	case score < 75:
		return 0.3, nil
	case score < 100:
		return 0.3 + (score-75)/25*(0.7-0.3), nil
	default:
		return 0.7, nil
	}
}

func checkScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return nil
}
