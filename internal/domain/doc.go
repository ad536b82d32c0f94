// Package domain models ground-water quality samples scored with the Heavy
// Metal Pollution Index (HMPI).
//
// # Data Source
//
// Samples originate from the dashboard backend's computed-indices store and are
// served by GET /map-data/ as flat JSON rows: an integer id, decimal latitude
// and longitude, the computed hmpi_value, and (depending on the requested field
// subset) location metadata and date fields. The backend computes hmpi_value
// from heavy-metal concentrations against WHO limits; this engine treats it as
// a finished non-negative score.
//
// # Threshold Scales
//
// Two independent threshold scales coexist on purpose and must never be
// swapped:
//
// The coarse scale (boundaries 25/50/75/100, left-inclusive) drives the
// discrete quality category and marker color:
//
//	[0, 25)   Excellent   dark green
//	[25, 50)  Good        light green
//	[50, 75)  Poor        orange
//	[75, 100) Very Poor   red-orange
//	[100, ∞)  Unsuitable  dark red
//
// The fine scale (boundaries 2/10/50/100, with interpolated sub-bands) drives
// only the heat-layer intensity weight:
//
//	[0, 2)    0.0005
//	[2, 10)   0.005
//	[10, 25)  0.005 → 0.05, linear in the sub-band
//	[25, 50)  0.05
//	[50, 75)  0.3
//	[75, 100) 0.3 → 0.7, linear in the sub-band
//	[100, ∞)  0.7
//
// Density rendering saturates if intensity follows the coarse thresholds:
// observed score distributions cluster near the bottom of the range (mean
// ≈ 1.17, max ≈ 180), so the fine scale stretches the low end. [Classify]
// applies the coarse scale, [HeatIntensity] the fine one.
//
// Negative and non-finite scores are invalid input. They fail classification
// with an error instead of falling through to Excellent.
//
// # Year Resolution
//
// The upstream schema evolved: newer rows carry an explicit year (or
// calculation_year), older rows only date strings. [ResolveYear] prefers the
// numeric fields and otherwise probes sample_date, computed_at, created_at and
// date in order, taking the calendar year of the first value that parses.
// Records that resolve to no year stay in the all-years aggregate but join no
// year bucket.
package domain
