package domain

import (
	"math"
	"time"
)

// Matrix is a square, symmetric correlation matrix keyed by label. NaN
// marks an undefined coefficient (zero variance or too few overlapping
// observations).
type Matrix struct {
	Labels []string
	Coef   [][]float64
}

// RollingFrame is one rolling correlation matrix keyed by its window's
// end date.
type RollingFrame struct {
	End    time.Time
	Matrix Matrix
}

// staticMinObs is the minimum joint observations for a static pairwise
// coefficient; below two points Pearson is undefined regardless.
const staticMinObs = 2

// At returns the coefficient for a label pair, NaN when either label is
// absent.
func (m Matrix) At(a, b string) float64 {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Coef[i][j]
}

func (m Matrix) index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Relabel returns a copy with labels mapped through names; labels missing
// from the map pass through unchanged.
func (m Matrix) Relabel(names map[string]string) Matrix {
	out := Matrix{Labels: make([]string, len(m.Labels)), Coef: m.Coef}
	for i, l := range m.Labels {
		if mapped, ok := names[l]; ok && mapped != "" {
			out.Labels[i] = mapped
		} else {
			out.Labels[i] = l
		}
	}
	return out
}

// Reorder returns a copy restricted to the labels in order that are
// present in m, arranged in order's sequence. Rolling frames are reordered
// against the canonical display order so axes never shift between frames.
func (m Matrix) Reorder(order []string) Matrix {
	idx := make([]int, 0, len(order))
	labels := make([]string, 0, len(order))
	for _, l := range order {
		if i := m.index(l); i >= 0 {
			idx = append(idx, i)
			labels = append(labels, l)
		}
	}
	coef := make([][]float64, len(idx))
	for r, i := range idx {
		coef[r] = make([]float64, len(idx))
		for c, j := range idx {
			coef[r][c] = m.Coef[i][j]
		}
	}
	return Matrix{Labels: labels, Coef: coef}
}

// pearson computes the Pearson coefficient over rows where both columns
// are present. NaN when fewer than minObs joint observations or either
// side has zero in-window variance.
func pearson(x, y []float64, minObs int) float64 {
	var n int
	var sx, sy float64
	for i := range x {
		if IsMissing(x[i]) || IsMissing(y[i]) {
			continue
		}
		n++
		sx += x[i]
		sy += y[i]
	}
	if n < minObs {
		return math.NaN()
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx, vy float64
	for i := range x {
		if IsMissing(x[i]) || IsMissing(y[i]) {
			continue
		}
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	r := cov / math.Sqrt(vx*vy)
	// Guard float drift outside [-1, 1].
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// correlate builds the pairwise-complete correlation matrix for the given
// columns of a window.
func correlate(cols []string, window map[string][]float64, minObs int) Matrix {
	m := Matrix{Labels: cols, Coef: make([][]float64, len(cols))}
	for i := range cols {
		m.Coef[i] = make([]float64, len(cols))
	}
	for i, a := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(window[a], window[cols[j]], minObs)
			m.Coef[i][j] = r
			m.Coef[j][i] = r
		}
	}
	return m
}

// StaticCorrelation computes one Pearson correlation matrix over the last
// lookback rows of the panel. Indicator columns are excluded; columns with
// no in-window data are dropped; rows where every surviving column is
// missing are dropped (a no-op for pairwise-complete Pearson, kept for
// parity with the emitted window). Labels are internal series names.
func StaticCorrelation(p *Panel, lookback int) Matrix {
	tail := p.Tail(lookback)

	cols := make([]string, 0, len(tail.Columns))
	for _, c := range tail.CorrelatedColumns() {
		for _, v := range tail.ColumnValues(c) {
			if !IsMissing(v) {
				cols = append(cols, c)
				break
			}
		}
	}

	window := make(map[string][]float64, len(cols))
	for _, c := range cols {
		window[c] = tail.ColumnValues(c)
	}
	return correlate(cols, window, staticMinObs)
}

// RollingCorrelation computes one correlation matrix per sliding window of
// window consecutive rows, keyed by the window's last date. Windows with
// fewer than two columns holding any data, or fewer than two rows holding
// any data, are skipped. minPairObs is the minimum joint observations per
// pair; thinner pairs yield NaN, not zero. The result is ascending by end
// date and may be empty.
func RollingCorrelation(p *Panel, window, minPairObs int) []RollingFrame {
	cols := p.CorrelatedColumns()
	if window <= 0 || len(cols) < 2 {
		return nil
	}
	var frames []RollingFrame
	for i := window; i <= p.Rows(); i++ {
		slab := make(map[string][]float64, len(cols))
		for _, c := range cols {
			slab[c] = p.ColumnValues(c)[i-window : i]
		}
		if colsWithData(cols, slab) < 2 || rowsWithData(cols, slab, window) < 2 {
			continue
		}
		frames = append(frames, RollingFrame{
			End:    p.Dates[i-1],
			Matrix: correlate(cols, slab, minPairObs),
		})
	}
	return frames
}

func colsWithData(cols []string, window map[string][]float64) int {
	n := 0
	for _, c := range cols {
		for _, v := range window[c] {
			if !IsMissing(v) {
				n++
				break
			}
		}
	}
	return n
}

func rowsWithData(cols []string, window map[string][]float64, rows int) int {
	n := 0
	for i := 0; i < rows; i++ {
		for _, c := range cols {
			if !IsMissing(window[c][i]) {
				n++
				break
			}
		}
	}
	return n
}
