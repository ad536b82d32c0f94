package domain

// YearCalculationRequest asks the backend to (re)compute indices for a year's
// samples via POST /computed-indices/calculate_by_year/.
type YearCalculationRequest struct {
	Year             int    `json:"year"`
	SampleType       string `json:"sample_type"`
	ForceRecalculate bool   `json:"force_recalculate"`
}

// CalculationFailure is one itemized failure from a year-batch calculation.
type CalculationFailure struct {
	SampleID string `json:"sample_id"`
	Error    string `json:"error"`
}

// YearCalculationResult mirrors the backend's batch-calculation response
// field for field. The dashboard consumes success_rate and the failure lists
// directly for partial-failure reporting, so the shape must not be reshaped
// here.
type YearCalculationResult struct {
	TotalCalculated        int                  `json:"total_calculated"`
	TotalStored            int                  `json:"total_stored"`
	TotalFailedCalculation int                  `json:"total_failed_calculation"`
	TotalFailedStorage     int                  `json:"total_failed_storage"`
	StoredIndices          []int64              `json:"stored_indices"`
	FailedCalculations     []CalculationFailure `json:"failed_calculations"`
	FailedStorage          []CalculationFailure `json:"failed_storage"`
	SuccessRate            float64              `json:"success_rate"`
}

// ComputedSuccessRate recomputes the success rate from the counts:
// (total_calculated - total_failed_calculation) / total_calculated * 100.
// Used to cross-check the backend-reported rate; returns 0 when nothing was
// calculated.
func (r YearCalculationResult) ComputedSuccessRate() float64 {
	if r.TotalCalculated == 0 {
		return 0
	}
	return float64(r.TotalCalculated-r.TotalFailedCalculation) / float64(r.TotalCalculated) * 100
}
