package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelsPanel(t *testing.T) *Panel {
	t.Helper()
	start := day(2024, time.January, 1)
	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: monthlySeq(start, 1, 2, 3, 4, 5, 6)},
		{Name: "B", Series: monthlySeq(start, 2, 4, 6, 8, 10, 12)},
		{Name: "C", Series: monthlySeq(start, 6, 5, 4, 3, 2, 1)},
	})
	require.NoError(t, err)
	return p
}

func TestStaticCorrelation_PerfectlyCorrelatedTriple(t *testing.T) {
	m := StaticCorrelation(levelsPanel(t), 6)

	require.ElementsMatch(t, []string{"A", "B", "C"}, m.Labels)
	assert.InDelta(t, 1.0, m.At("A", "B"), 1e-12)
	assert.InDelta(t, -1.0, m.At("A", "C"), 1e-12)
	assert.InDelta(t, -1.0, m.At("B", "C"), 1e-12)
}

func TestStaticCorrelation_SymmetricUnitDiagonal(t *testing.T) {
	m := StaticCorrelation(levelsPanel(t), 6)

	for i := range m.Labels {
		assert.InDelta(t, 1.0, m.Coef[i][i], 1e-12)
		for j := range m.Labels {
			assert.Equal(t, m.Coef[i][j], m.Coef[j][i])
		}
	}
}

func TestStaticCorrelation_ZeroVarianceDiagonalUndefined(t *testing.T) {
	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: monthlySeq(day(2024, time.January, 1), 1, 2, 3)},
		{Name: "FLAT", Series: monthlySeq(day(2024, time.January, 1), 5, 5, 5)},
	})
	require.NoError(t, err)

	m := StaticCorrelation(p, 3)
	assert.True(t, math.IsNaN(m.At("FLAT", "FLAT")))
	assert.True(t, math.IsNaN(m.At("A", "FLAT")))
	assert.InDelta(t, 1.0, m.At("A", "A"), 1e-12)
}

func TestStaticCorrelation_DropsEmptyColumnsAndIndicator(t *testing.T) {
	start := day(2024, time.January, 1)
	empty := MonthlySeries{
		Months: []time.Time{month(2024, time.January), month(2024, time.February)},
		Values: []float64{Missing(), Missing()},
	}
	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: monthlySeq(start, 1, 2, 3, 4, 5, 6)},
		{Name: "B", Series: monthlySeq(start, 2, 4, 6, 8, 10, 12)},
		{Name: "EMPTY", Series: empty},
		{Name: "USREC", Role: RoleIndicator, Series: monthlySeq(start, 0, 0, 1, 1, 0, 0)},
	})
	require.NoError(t, err)

	m := StaticCorrelation(p, 6)
	assert.ElementsMatch(t, []string{"A", "B"}, m.Labels)
}

// Window admission at the boundary: a 4-column, 6-row panel. The Jan-Mar
// window sees data in exactly one column and is rejected; the Feb-Apr
// window sees exactly two (one of them with a single in-window row) and is
// admitted.
func TestRollingCorrelation_WindowAdmission(t *testing.T) {
	start := day(2024, time.January, 1)
	a := monthlySeq(start, 1, 2, 3, 4, 5, 6)
	b := MonthlySeries{Months: a.Months, Values: []float64{Missing(), Missing(), Missing(), 8, 10, 12}}
	c := MonthlySeries{Months: a.Months, Values: []float64{Missing(), Missing(), Missing(), Missing(), 2, 1}}
	d := MonthlySeries{Months: a.Months, Values: []float64{Missing(), Missing(), Missing(), Missing(), Missing(), 9}}

	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: a},
		{Name: "B", Series: b},
		{Name: "C", Series: c},
		{Name: "D", Series: d},
	})
	require.NoError(t, err)
	require.Equal(t, 6, p.Rows())

	frames := RollingCorrelation(p, 3, 2)
	require.Len(t, frames, 3)

	// Jan-Mar (only A has data) is rejected; Feb-Apr is the first admitted
	// window even though B covers just one of its three rows.
	assert.Equal(t, month(2024, time.April), frames[0].End)
	assert.Equal(t, month(2024, time.May), frames[1].End)
	assert.Equal(t, month(2024, time.June), frames[2].End)
}

func TestRollingCorrelation_KeysAscendingByWindowEnd(t *testing.T) {
	frames := RollingCorrelation(levelsPanel(t), 3, 2)
	require.Len(t, frames, 4)
	for i := 1; i < len(frames); i++ {
		assert.True(t, frames[i].End.After(frames[i-1].End))
	}
	assert.Equal(t, month(2024, time.March), frames[0].End)
	assert.Equal(t, month(2024, time.June), frames[3].End)
}

func TestRollingCorrelation_ThinPairsUndefinedNotZero(t *testing.T) {
	start := day(2024, time.January, 1)
	a := monthlySeq(start, 1, 2, 3)
	// B overlaps A in a single row of the window.
	b := MonthlySeries{Months: a.Months, Values: []float64{Missing(), Missing(), 5}}
	c := monthlySeq(start, 3, 2, 1)

	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: a},
		{Name: "B", Series: b},
		{Name: "C", Series: c},
	})
	require.NoError(t, err)

	frames := RollingCorrelation(p, 3, 2)
	require.Len(t, frames, 1)
	m := frames[0].Matrix
	assert.True(t, math.IsNaN(m.At("A", "B")), "single overlapping point must be undefined")
	assert.InDelta(t, -1.0, m.At("A", "C"), 1e-12)
}

func TestRollingCorrelation_PanelShorterThanWindowIsEmpty(t *testing.T) {
	frames := RollingCorrelation(levelsPanel(t), 12, 2)
	assert.Empty(t, frames)
}

func TestMatrix_RelabelAndReorder(t *testing.T) {
	m := StaticCorrelation(levelsPanel(t), 6)
	labeled := m.Relabel(map[string]string{"A": "Alpha", "C": "Carry"})

	assert.InDelta(t, 1.0, labeled.At("Alpha", "B"), 1e-12)

	ordered := labeled.Reorder([]string{"Carry", "Alpha", "B", "GHOST"})
	require.Equal(t, []string{"Carry", "Alpha", "B"}, ordered.Labels)
	assert.InDelta(t, -1.0, ordered.At("Carry", "Alpha"), 1e-12)
	assert.InDelta(t, 1.0, ordered.Coef[0][0], 1e-12)
}
