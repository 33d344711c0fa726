package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergePanel_UnionOfDates(t *testing.T) {
	a := monthlySeq(day(2024, time.January, 1), 1, 2, 3)
	b := monthlySeq(day(2024, time.March, 1), 10, 20)

	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: a},
		{Name: "B", Series: b},
	})
	require.NoError(t, err)

	want := []time.Time{
		month(2024, time.January),
		month(2024, time.February),
		month(2024, time.March),
		month(2024, time.April),
	}
	require.Equal(t, want, p.Dates)

	// Every input date is reachable in the output index, exactly once.
	assert.Equal(t, []float64{1, 2, 3}, p.ColumnValues("A")[:3])
	assert.True(t, IsMissing(p.ColumnValues("A")[3]))
	assert.True(t, IsMissing(p.ColumnValues("B")[0]))
	assert.True(t, IsMissing(p.ColumnValues("B")[1]))
	assert.Equal(t, 10.0, p.ColumnValues("B")[2])
	assert.Equal(t, 20.0, p.ColumnValues("B")[3])
}

func TestMergePanel_NoInputIsInsufficientData(t *testing.T) {
	_, err := MergePanel(nil)
	var insufficientErr *InsufficientDataError
	require.ErrorAs(t, err, &insufficientErr)
}

func seriesWithGap(gap int) MonthlySeries {
	// One observed month, `gap` explicitly-missing months, one observed month.
	s := MonthlySeries{}
	start := day(2020, time.January, 1)
	for i := 0; i <= gap+1; i++ {
		v := Missing()
		switch i {
		case 0:
			v = 1.0
		case gap + 1:
			v = 9.0
		}
		s.Months = append(s.Months, MonthEnd(start.AddDate(0, i, 0)))
		s.Values = append(s.Values, v)
	}
	return s
}

func missingCount(vals []float64) int {
	n := 0
	for _, v := range vals {
		if IsMissing(v) {
			n++
		}
	}
	return n
}

func TestBoundedFill_ShortGapFullyFilled(t *testing.T) {
	p, err := MergePanel([]PanelColumn{{Name: "A", Series: seriesWithGap(3)}})
	require.NoError(t, err)

	p.BoundedFill(3)
	assert.Equal(t, 0, missingCount(p.ColumnValues("A")))
	// Interior months carry the preceding value forward.
	assert.Equal(t, 1.0, p.ColumnValues("A")[1])
	assert.Equal(t, 1.0, p.ColumnValues("A")[3])
}

func TestBoundedFill_GapOfFourKeepsAMissingMonth(t *testing.T) {
	p, err := MergePanel([]PanelColumn{{Name: "A", Series: seriesWithGap(4)}})
	require.NoError(t, err)

	p.BoundedFill(3)
	vals := p.ColumnValues("A")
	assert.GreaterOrEqual(t, missingCount(vals), 1, "a 4-month gap must not be fully filled")
}

func TestBoundedFill_NeverFillsMoreThanLimitConsecutive(t *testing.T) {
	for gap := 1; gap <= 10; gap++ {
		p, err := MergePanel([]PanelColumn{{Name: "A", Series: seriesWithGap(gap)}})
		require.NoError(t, err)

		before := append([]float64(nil), p.ColumnValues("A")...)
		p.BoundedFill(3)
		after := p.ColumnValues("A")

		run := 0
		maxRun := 0
		for i := range after {
			filled := IsMissing(before[i]) && !IsMissing(after[i])
			if filled {
				run++
				if run > maxRun {
					maxRun = run
				}
			} else {
				run = 0
			}
		}
		assert.LessOrEqual(t, maxRun, 3, "gap=%d filled a run longer than the limit", gap)
		if gap > 3 {
			assert.GreaterOrEqual(t, missingCount(after), 1, "gap=%d should retain a missing month", gap)
		}
	}
}

func TestBoundedFill_LeadingGapBackfilled(t *testing.T) {
	s := MonthlySeries{
		Months: []time.Time{month(2024, time.January), month(2024, time.April)},
		Values: []float64{Missing(), 4.0},
	}
	p, err := MergePanel([]PanelColumn{{Name: "A", Series: s}})
	require.NoError(t, err)

	p.BoundedFill(3)
	assert.Equal(t, 4.0, p.ColumnValues("A")[0], "leading gap within limit is backfilled")
}

func TestPanel_ColumnsWithDataExcludesIndicator(t *testing.T) {
	p, err := MergePanel([]PanelColumn{
		{Name: "A", Series: monthlySeq(day(2024, time.January, 1), 1, 2)},
		{Name: "USREC", Role: RoleIndicator, Series: monthlySeq(day(2024, time.January, 1), 0, 1)},
		{Name: "B", Series: MonthlySeries{
			Months: []time.Time{month(2024, time.January)},
			Values: []float64{Missing()},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, p.ColumnsWithData())
	assert.Equal(t, []string{"A", "B"}, p.CorrelatedColumns())
}

func TestPanel_TailAndTrimFrom(t *testing.T) {
	p, err := MergePanel([]PanelColumn{{Name: "A", Series: monthlySeq(day(2024, time.January, 1), 1, 2, 3, 4)}})
	require.NoError(t, err)

	tail := p.Tail(2)
	require.Equal(t, 2, tail.Rows())
	assert.Equal(t, month(2024, time.March), tail.Dates[0])

	trimmed := p.TrimFrom(month(2024, time.February))
	require.Equal(t, 3, trimmed.Rows())
	assert.Equal(t, month(2024, time.February), trimmed.Dates[0])

	assert.Equal(t, 4, p.Tail(99).Rows())
}

func TestPanel_CoverageReport(t *testing.T) {
	s := MonthlySeries{
		Months: []time.Time{month(2024, time.January), month(2024, time.February), month(2024, time.March)},
		Values: []float64{Missing(), 2.0, 3.0},
	}
	p, err := MergePanel([]PanelColumn{{Name: "A", Series: s}})
	require.NoError(t, err)

	cov := p.CoverageReport()
	require.Len(t, cov, 1)
	assert.Equal(t, month(2024, time.February), cov[0].First)
	assert.Equal(t, month(2024, time.March), cov[0].Last)
	assert.Equal(t, 2, cov[0].Count)
}
