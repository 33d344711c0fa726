package domain

import (
	"math"
	"sort"
	"time"
)

// Observation is a single raw data point for one series. Raw sequences may
// contain duplicate or unsorted dates; DedupObservations normalizes them.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// AggMode selects how multiple observations within one calendar month
// collapse to a single monthly value.
type AggMode string

const (
	AggLast AggMode = "last"
	AggMean AggMode = "mean"
)

// Role tags a configured series as either a correlation input or an
// indicator column carried in the panel but excluded from correlation.
type Role string

const (
	RoleCorrelated Role = "correlated"
	RoleIndicator  Role = "indicator"
)

// MonthlySeries holds one value per month-end date. Months are ascending
// and unique but not necessarily contiguous. NaN marks a missing value.
type MonthlySeries struct {
	Months []time.Time
	Values []float64
}

// Len returns the number of monthly rows.
func (s MonthlySeries) Len() int { return len(s.Months) }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Missing is the canonical missing-value marker.
func Missing() float64 { return math.NaN() }

// MonthEnd returns the last calendar day of t's month, normalized to UTC
// midnight. All monthly keys in the pipeline use this form.
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// monthKey maps a date to a comparable month index.
func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// DedupObservations sorts observations ascending by date and collapses
// duplicate dates keeping the latest-loaded value. The input is not
// modified.
func DedupObservations(obs []Observation) []Observation {
	if len(obs) == 0 {
		return nil
	}
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	out := sorted[:0]
	for _, o := range sorted {
		if len(out) > 0 && out[len(out)-1].Date.Equal(o.Date) {
			out[len(out)-1] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

// ResampleMonthly groups observations by calendar month and collapses each
// month to one value: AggLast keeps the chronologically latest observation,
// AggMean averages all observations in the month. Months with no input are
// absent from the output, not interpolated. Dates need not be unique or
// sorted.
func ResampleMonthly(obs []Observation, how AggMode) (MonthlySeries, error) {
	if how != AggLast && how != AggMean {
		return MonthlySeries{}, &ConfigError{Field: "aggregation", Reason: "must be 'last' or 'mean', got '" + string(how) + "'"}
	}

	type bucket struct {
		latest   time.Time
		lastVal  float64
		sum      float64
		count    int
		monthEnd time.Time
	}
	buckets := make(map[int]*bucket)
	for _, o := range obs {
		k := monthKey(o.Date)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{monthEnd: MonthEnd(o.Date)}
			buckets[k] = b
		}
		// Later-loaded observations win ties on equal dates.
		if b.count == 0 || !o.Date.Before(b.latest) {
			b.latest = o.Date
			b.lastVal = o.Value
		}
		b.sum += o.Value
		b.count++
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := MonthlySeries{
		Months: make([]time.Time, 0, len(keys)),
		Values: make([]float64, 0, len(keys)),
	}
	for _, k := range keys {
		b := buckets[k]
		out.Months = append(out.Months, b.monthEnd)
		switch how {
		case AggLast:
			out.Values = append(out.Values, b.lastVal)
		case AggMean:
			out.Values = append(out.Values, b.sum/float64(b.count))
		}
	}
	return out, nil
}
