package application

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/macrocorr/internal/domain"
	"github.com/sawpanic/macrocorr/internal/providers"
)

// SeriesMeta describes one configured series.
type SeriesMeta struct {
	Source    string `yaml:"source"`
	ID        string `yaml:"id"`
	Transform string `yaml:"transform"`
	Label     string `yaml:"label"`
	Role      string `yaml:"role"`
}

// DisplayLabel returns the configured label, defaulting to the series
// name.
func (m SeriesMeta) DisplayLabel(name string) string {
	if m.Label != "" {
		return m.Label
	}
	return name
}

// SeriesConfig maps series names to their metadata, plus the data-driven
// provider fallback chains.
type SeriesConfig struct {
	Series    map[string]SeriesMeta    `yaml:"series"`
	Fallbacks providers.FallbackConfig `yaml:"fallbacks"`
}

// VizConfig holds visualization and windowing parameters.
type VizConfig struct {
	LookbackMonths        int       `yaml:"lookback_months"`
	RollingWindowMonths   int       `yaml:"rolling_window_months"`
	RollingLookbackMonths int       `yaml:"rolling_lookback_months"`
	Mode                  string    `yaml:"mode"`
	Cluster               bool      `yaml:"cluster"`
	ColorScale            []float64 `yaml:"color_scale"`
	MinSeriesForOutput    int       `yaml:"min_series_for_output"`
	MinPairObs            int       `yaml:"min_pair_obs"`
}

// LoadSeriesConfig reads and validates series.yaml.
func LoadSeriesConfig(path string) (*SeriesConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read series config: %w", err)
	}
	var c SeriesConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, &domain.ConfigError{Field: "series.yaml", Reason: err.Error()}
	}
	if len(c.Series) == 0 {
		return nil, &domain.ConfigError{Field: "series", Reason: "must contain a top-level 'series' mapping with at least one entry"}
	}
	for name, meta := range c.Series {
		if meta.Source == "" {
			return nil, &domain.ConfigError{Field: "series." + name + ".source", Reason: "required"}
		}
		if meta.ID == "" {
			return nil, &domain.ConfigError{Field: "series." + name + ".id", Reason: "required"}
		}
		if _, err := domain.ParseTransform(meta.Transform); err != nil {
			return nil, &domain.ConfigError{Field: "series." + name + ".transform", Reason: "unknown transform '" + meta.Transform + "'"}
		}
		switch domain.Role(meta.Role) {
		case "", domain.RoleCorrelated, domain.RoleIndicator:
		default:
			return nil, &domain.ConfigError{Field: "series." + name + ".role", Reason: "must be 'correlated' or 'indicator'"}
		}
	}
	return &c, nil
}

// LoadVizConfig reads and validates viz.yaml, applying defaults for the
// optional keys.
func LoadVizConfig(path string) (*VizConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read viz config: %w", err)
	}

	// Required-key check before decoding so a missing key is reported by
	// name rather than surfacing as a zero value.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, &domain.ConfigError{Field: "viz.yaml", Reason: err.Error()}
	}
	for _, key := range []string{"lookback_months", "rolling_window_months", "mode", "cluster", "color_scale"} {
		if _, ok := raw[key]; !ok {
			return nil, &domain.ConfigError{Field: "viz." + key, Reason: "required key missing"}
		}
	}

	var c VizConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, &domain.ConfigError{Field: "viz.yaml", Reason: err.Error()}
	}
	if c.LookbackMonths <= 0 {
		return nil, &domain.ConfigError{Field: "viz.lookback_months", Reason: "must be > 0"}
	}
	if c.RollingWindowMonths <= 0 {
		return nil, &domain.ConfigError{Field: "viz.rolling_window_months", Reason: "must be > 0"}
	}
	if _, err := domain.ParseMode(c.Mode); err != nil {
		return nil, err
	}
	if len(c.ColorScale) != 2 {
		return nil, &domain.ConfigError{Field: "viz.color_scale", Reason: "must be a [min, max] pair"}
	}
	// Defaults apply only when the key is absent: an explicit zero (for
	// example min_series_for_output: 0) is honored as configured.
	if _, ok := raw["rolling_lookback_months"]; !ok {
		c.RollingLookbackMonths = 300
	}
	if _, ok := raw["min_series_for_output"]; !ok {
		c.MinSeriesForOutput = 5
	}
	if _, ok := raw["min_pair_obs"]; !ok {
		c.MinPairObs = 2
	}
	return &c, nil
}

// Paths carries the output directory layout through the pipeline; there
// is no package-level default.
type Paths struct {
	RawDir        string
	ProcessedDir  string
	FiguresDir    string
	AnimationsDir string
	ManifestPath  string
	ReadmePath    string
}

// DefaultPaths lays the directories out under a root the way the
// repository organizes its artifacts.
func DefaultPaths(root string) Paths {
	return Paths{
		RawDir:        filepath.Join(root, "data", "raw"),
		ProcessedDir:  filepath.Join(root, "data", "processed"),
		FiguresDir:    filepath.Join(root, "reports", "figures"),
		AnimationsDir: filepath.Join(root, "reports", "animations"),
		ManifestPath:  filepath.Join(root, "reports", "manifest.json"),
		ReadmePath:    filepath.Join(root, "README.md"),
	}
}

// EnsureDirs creates all output directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.RawDir, p.ProcessedDir, p.FiguresDir, p.AnimationsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
