package domain

import (
	"sort"
	"time"
)

// PanelColumn pairs a named monthly series with its configured role.
type PanelColumn struct {
	Name   string
	Role   Role
	Series MonthlySeries
}

// Panel is the merged monthly multi-series table: one row per distinct
// month-end date seen in any input series, one column per series, NaN for
// months a series has no observation. Once built the panel is treated as
// immutable by the correlation passes.
type Panel struct {
	Dates   []time.Time
	Columns []string
	roles   map[string]Role
	values  map[string][]float64
}

// MergePanel outer-joins monthly series on date. The output index is the
// sorted union of all input month-end dates, each appearing exactly once.
// Fails with InsufficientDataError when no input is provided.
func MergePanel(cols []PanelColumn) (*Panel, error) {
	if len(cols) == 0 {
		return nil, &InsufficientDataError{Subject: "series to merge", Have: 0, Need: 1}
	}

	dateSet := make(map[time.Time]struct{})
	for _, c := range cols {
		for _, m := range c.Series.Months {
			dateSet[m] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowIdx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		rowIdx[d] = i
	}

	p := &Panel{
		Dates:   dates,
		Columns: make([]string, 0, len(cols)),
		roles:   make(map[string]Role, len(cols)),
		values:  make(map[string][]float64, len(cols)),
	}
	for _, c := range cols {
		vals := make([]float64, len(dates))
		for i := range vals {
			vals[i] = Missing()
		}
		for i, m := range c.Series.Months {
			vals[rowIdx[m]] = c.Series.Values[i]
		}
		role := c.Role
		if role == "" {
			role = RoleCorrelated
		}
		p.Columns = append(p.Columns, c.Name)
		p.roles[c.Name] = role
		p.values[c.Name] = vals
	}
	return p, nil
}

// Rows returns the number of monthly rows.
func (p *Panel) Rows() int { return len(p.Dates) }

// Role returns the configured role for a column.
func (p *Panel) Role(name string) Role { return p.roles[name] }

// ColumnValues returns the value slice for one column, aligned to Dates.
func (p *Panel) ColumnValues(name string) []float64 { return p.values[name] }

// CorrelatedColumns returns the columns participating in correlation, in
// panel column order.
func (p *Panel) CorrelatedColumns() []string {
	out := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if p.roles[c] != RoleIndicator {
			out = append(out, c)
		}
	}
	return out
}

// ColumnsWithData counts correlated columns holding at least one
// non-missing value.
func (p *Panel) ColumnsWithData() int {
	n := 0
	for _, c := range p.CorrelatedColumns() {
		for _, v := range p.values[c] {
			if !IsMissing(v) {
				n++
				break
			}
		}
	}
	return n
}

// Coverage describes the observed span of one column after alignment.
type Coverage struct {
	Column string
	First  time.Time
	Last   time.Time
	Count  int
}

// CoverageReport summarizes non-missing coverage per correlated column,
// used for the post-alignment coverage log.
func (p *Panel) CoverageReport() []Coverage {
	out := make([]Coverage, 0, len(p.Columns))
	for _, c := range p.CorrelatedColumns() {
		cov := Coverage{Column: c}
		for i, v := range p.values[c] {
			if IsMissing(v) {
				continue
			}
			if cov.Count == 0 {
				cov.First = p.Dates[i]
			}
			cov.Last = p.Dates[i]
			cov.Count++
		}
		out = append(out, cov)
	}
	return out
}

// Tail returns a view-like copy containing the last n rows (all rows when
// n exceeds the panel length).
func (p *Panel) Tail(n int) *Panel {
	if n >= p.Rows() {
		n = p.Rows()
	}
	return p.slice(p.Rows()-n, p.Rows())
}

// TrimFrom returns a copy containing only rows at or after start.
func (p *Panel) TrimFrom(start time.Time) *Panel {
	i := sort.Search(p.Rows(), func(i int) bool { return !p.Dates[i].Before(start) })
	return p.slice(i, p.Rows())
}

func (p *Panel) slice(lo, hi int) *Panel {
	out := &Panel{
		Dates:   p.Dates[lo:hi],
		Columns: p.Columns,
		roles:   p.roles,
		values:  make(map[string][]float64, len(p.Columns)),
	}
	for _, c := range p.Columns {
		out.values[c] = p.values[c][lo:hi]
	}
	return out
}

// BoundedFill fills short alignment gaps in every column: within each
// originally-missing run, up to limit values are carried forward from the
// preceding observation, then up to limit carried backward from the
// following one. A run longer than limit always retains at least one
// missing month, so the fill never fabricates more than limit consecutive
// values.
func (p *Panel) BoundedFill(limit int) {
	if limit <= 0 {
		return
	}
	for _, c := range p.Columns {
		fillColumn(p.values[c], limit)
	}
}

func fillColumn(vals []float64, limit int) {
	n := len(vals)
	i := 0
	for i < n {
		if !IsMissing(vals[i]) {
			i++
			continue
		}
		start := i
		for i < n && IsMissing(vals[i]) {
			i++
		}
		gap := i - start
		hasPrev := start > 0
		hasNext := i < n

		forward := 0
		if hasPrev {
			forward = min(limit, gap)
		}
		backward := 0
		if hasNext {
			remaining := gap - forward
			backward = min(limit, remaining)
			if gap > limit && forward+backward >= gap {
				// Long runs keep at least one interior month missing.
				backward = gap - forward - 1
			}
			if backward < 0 {
				backward = 0
			}
		}

		for k := 0; k < forward; k++ {
			vals[start+k] = vals[start-1]
		}
		for k := 0; k < backward; k++ {
			vals[i-1-k] = vals[i]
		}
	}
}
