package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func month(y int, m time.Month) time.Time {
	return MonthEnd(day(y, m, 1))
}

func TestResampleMonthly_LastKeepsLatestObservation(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, time.January, 31), Value: 3.0},
		{Date: day(2024, time.January, 5), Value: 1.0},
		{Date: day(2024, time.January, 20), Value: 2.0},
		{Date: day(2024, time.March, 10), Value: 9.0},
	}

	s, err := ResampleMonthly(obs, AggLast)
	require.NoError(t, err)

	require.Equal(t, []time.Time{month(2024, time.January), month(2024, time.March)}, s.Months)
	assert.Equal(t, 3.0, s.Values[0])
	assert.Equal(t, 9.0, s.Values[1])
}

func TestResampleMonthly_MeanAveragesMonth(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, time.June, 1), Value: 2.0},
		{Date: day(2024, time.June, 15), Value: 4.0},
		{Date: day(2024, time.June, 30), Value: 6.0},
	}

	s, err := ResampleMonthly(obs, AggMean)
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	assert.InDelta(t, 4.0, s.Values[0], 1e-12)
}

func TestResampleMonthly_LaterLoadedDuplicateWins(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, time.May, 31), Value: 1.0},
		{Date: day(2024, time.May, 31), Value: 7.0},
	}

	s, err := ResampleMonthly(obs, AggLast)
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.Values[0])
}

func TestResampleMonthly_UnknownModeIsConfigError(t *testing.T) {
	_, err := ResampleMonthly([]Observation{{Date: day(2024, time.January, 1), Value: 1}}, "median")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestDedupObservations_SortsAndKeepsLatestLoaded(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, time.February, 2), Value: 2.0},
		{Date: day(2024, time.January, 1), Value: 1.0},
		{Date: day(2024, time.February, 2), Value: 5.0},
	}

	out := DedupObservations(obs)
	require.Len(t, out, 2)
	assert.Equal(t, day(2024, time.January, 1), out[0].Date)
	assert.Equal(t, 5.0, out[1].Value)
}

func TestMonthEnd(t *testing.T) {
	assert.Equal(t, day(2024, time.February, 29), MonthEnd(day(2024, time.February, 3)))
	assert.Equal(t, day(2023, time.December, 31), MonthEnd(day(2023, time.December, 31)))
}
