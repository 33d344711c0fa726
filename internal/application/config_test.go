package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/macrocorr/internal/domain"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadSeriesConfig(t *testing.T) {
	path := writeConfig(t, "series.yaml", `
series:
  cpi_yoy:
    source: fred
    id: CPIAUCSL
    transform: yoy
    label: CPI YoY
  spx:
    source: stooq
    id: spy.us
    transform: return
  recession:
    source: fred
    id: USREC
    role: indicator
fallbacks:
  alternates:
    yahoo:
      XAUUSD=X:
        - GC=F
  proxies:
    XAUUSD=X:
      source: stooq
      id: xauusd
`)

	c, err := LoadSeriesConfig(path)
	require.NoError(t, err)
	require.Len(t, c.Series, 3)
	assert.Equal(t, "CPI YoY", c.Series["cpi_yoy"].DisplayLabel("cpi_yoy"))
	assert.Equal(t, "spx", c.Series["spx"].DisplayLabel("spx"))
	assert.Equal(t, "indicator", c.Series["recession"].Role)
	assert.Equal(t, []string{"GC=F"}, c.Fallbacks.Alternates["yahoo"]["XAUUSD=X"])
	assert.Equal(t, "stooq", c.Fallbacks.Proxies["XAUUSD=X"].Source)
}

func TestLoadSeriesConfig_Invalid(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
	}{
		"empty": {
			body:  "series: {}\n",
			field: "series",
		},
		"missing source": {
			body:  "series:\n  a:\n    id: X\n",
			field: "series.a.source",
		},
		"missing id": {
			body:  "series:\n  a:\n    source: fred\n",
			field: "series.a.id",
		},
		"bad transform": {
			body:  "series:\n  a:\n    source: fred\n    id: X\n    transform: log\n",
			field: "series.a.transform",
		},
		"bad role": {
			body:  "series:\n  a:\n    source: fred\n    id: X\n    role: shaded\n",
			field: "series.a.role",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeriesConfig(writeConfig(t, "series.yaml", tc.body))
			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestLoadVizConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "viz.yaml", `
lookback_months: 120
rolling_window_months: 36
mode: returns
cluster: true
color_scale: [-1, 1]
`)

	c, err := LoadVizConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 120, c.LookbackMonths)
	assert.Equal(t, 36, c.RollingWindowMonths)
	assert.True(t, c.Cluster)
	assert.Equal(t, 300, c.RollingLookbackMonths)
	assert.Equal(t, 5, c.MinSeriesForOutput)
	assert.Equal(t, 2, c.MinPairObs)
}

func TestLoadVizConfig_ExplicitZeroKept(t *testing.T) {
	path := writeConfig(t, "viz.yaml", `
lookback_months: 120
rolling_window_months: 36
mode: returns
cluster: true
color_scale: [-1, 1]
min_series_for_output: 0
`)

	c, err := LoadVizConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.MinSeriesForOutput)
	// Absent keys still default.
	assert.Equal(t, 300, c.RollingLookbackMonths)
	assert.Equal(t, 2, c.MinPairObs)
}

func TestLoadVizConfig_MissingKey(t *testing.T) {
	path := writeConfig(t, "viz.yaml", `
lookback_months: 120
mode: returns
cluster: true
color_scale: [-1, 1]
`)

	_, err := LoadVizConfig(path)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "viz.rolling_window_months", cfgErr.Field)
}

func TestLoadVizConfig_BadValues(t *testing.T) {
	path := writeConfig(t, "viz.yaml", `
lookback_months: 120
rolling_window_months: 36
mode: sideways
cluster: false
color_scale: [-1, 1]
`)
	_, err := LoadVizConfig(path)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	path = writeConfig(t, "viz.yaml", `
lookback_months: 120
rolling_window_months: 36
mode: returns
cluster: false
color_scale: [-1, 0, 1]
`)
	_, err = LoadVizConfig(path)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "viz.color_scale", cfgErr.Field)
}

func TestDefaultPaths(t *testing.T) {
	root := t.TempDir()
	paths := DefaultPaths(root)
	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.RawDir, paths.ProcessedDir, paths.FiguresDir, paths.AnimationsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
