package application

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/macrocorr/internal/artifacts"
	"github.com/sawpanic/macrocorr/internal/domain"
	"github.com/sawpanic/macrocorr/internal/ops"
	"github.com/sawpanic/macrocorr/internal/persistence"
)

// RawStore is the persisted raw-observation store the pipeline reads and
// writes.
type RawStore interface {
	LoadLatest(name string) ([]domain.Observation, error)
	SaveRaw(name string, obs []domain.Observation) (string, error)
}

// Fetcher retrieves fresh observations from a provider; typically the
// providers.Registry with its fallback chains.
type Fetcher interface {
	Fetch(ctx context.Context, source, id string) ([]domain.Observation, error)
}

// HeatmapSink consumes the static correlation matrix. The bundled
// implementation writes CSV/JSON artifacts; an image renderer is an
// external collaborator.
type HeatmapSink interface {
	RenderHeatmap(ctx context.Context, m domain.Matrix, title string, paths []string) error
}

// AnimationSink consumes the rolling correlation sequence.
type AnimationSink interface {
	RenderAnimation(ctx context.Context, frames []domain.RollingFrame, order []string, windowMonths int, mode domain.Mode, path string) error
}

// PanelWriter persists the merged panel snapshot.
type PanelWriter interface {
	EmitPanelCSV(path string, p *domain.Panel) error
}

// StepMetrics is the slice of the metrics registry the pipeline reports
// into.
type StepMetrics interface {
	RecordFetch(provider string, duration time.Duration, err error)
	RecordStep(step string, duration time.Duration, err error)
	RecordRun(seriesLoaded, panelRows, rollingFrames int, at time.Time)
}

// ProgressPublisher receives run progress events; satisfied by the
// monitor server's websocket hub.
type ProgressPublisher interface {
	Broadcast(v interface{})
}

// ProgressEvent is one pipeline step transition.
type ProgressEvent struct {
	RunID  string    `json:"run_id"`
	Step   string    `json:"step"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// RunResult is everything a run produced, already labeled and ordered
// for display.
type RunResult struct {
	RunID   string
	Mode    domain.Mode
	Panel   *domain.Panel
	Static  domain.Matrix
	Order   []string
	Rolling []domain.RollingFrame
}

// Pipeline wires the correlation run end to end. Fetcher, sinks, repos,
// metrics, and progress are all optional; a zero field skips that
// collaborator.
type Pipeline struct {
	Series *SeriesConfig
	Viz    *VizConfig
	Paths  Paths

	Store     RawStore
	Fetcher   Fetcher
	Heatmap   HeatmapSink
	Animation AnimationSink
	Panels    PanelWriter
	Repos     *persistence.Repository
	Metrics   StepMetrics
	Progress  ProgressPublisher

	// Clock is overridable for tests; defaults to time.Now.
	Clock func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

// Run executes one full pipeline pass: fetch (optional), load, resample,
// transform, merge, correlate, order, emit. Per-series failures are
// recovered; only configuration and insufficient-data errors abort.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	mode, err := domain.ParseMode(p.Viz.Mode)
	if err != nil {
		return nil, err
	}
	if err := p.Paths.EnsureDirs(); err != nil {
		return nil, err
	}

	startedAt := p.now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("mode", string(mode)).Logger()
	logger.Info().Msg("Starting correlation run")

	if p.Fetcher != nil {
		p.step(runID, "fetch", func() error {
			p.fetchAll(ctx)
			return nil
		})
	}

	var panel *domain.Panel
	if err := p.step(runID, "build_panel", func() error {
		var buildErr error
		panel, buildErr = p.buildPanel(ctx, mode)
		return buildErr
	}); err != nil {
		return nil, err
	}

	available := panel.ColumnsWithData()
	if available < p.Viz.MinSeriesForOutput {
		return nil, &domain.InsufficientDataError{
			Subject: "series with data after alignment",
			Have:    available,
			Need:    p.Viz.MinSeriesForOutput,
		}
	}
	p.logCoverage(panel, logger)

	labelMap := p.labelMap(panel)

	var static domain.Matrix
	var rolling []domain.RollingFrame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		static = domain.StaticCorrelation(panel, p.Viz.LookbackMonths)
		return nil
	})
	g.Go(func() error {
		rolling = p.rollingFrames(gctx, panel)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(rolling) == 0 {
		// Degraded: a single synthetic frame from the static window. This
		// cannot fail once the static matrix exists.
		logger.Warn().Msg("No rolling frames at all; degrading to a single static frame")
		rolling = []domain.RollingFrame{{
			End:    panel.Dates[panel.Rows()-1],
			Matrix: static,
		}}
	}

	static = static.Relabel(labelMap)
	for i := range rolling {
		rolling[i].Matrix = rolling[i].Matrix.Relabel(labelMap)
	}

	order := p.resolveOrder(static, panel, labelMap)
	static = static.Reorder(order)
	for i := range rolling {
		rolling[i].Matrix = rolling[i].Matrix.Reorder(order)
	}

	result := &RunResult{
		RunID:   runID,
		Mode:    mode,
		Panel:   panel,
		Static:  static,
		Order:   order,
		Rolling: rolling,
	}

	p.step(runID, "emit", func() error {
		p.emit(ctx, result, startedAt)
		return nil
	})

	if p.Metrics != nil {
		p.Metrics.RecordRun(available, panel.Rows(), len(rolling), p.now())
	}
	logger.Info().Int("series", available).Int("rows", panel.Rows()).
		Int("frames", len(rolling)).Msg("Correlation run complete")
	return result, nil
}

// step wraps one pipeline stage with metrics and progress reporting.
func (p *Pipeline) step(runID, name string, fn func() error) error {
	p.publish(runID, name, "started")
	start := p.now()
	err := fn()
	if p.Metrics != nil {
		p.Metrics.RecordStep(name, p.now().Sub(start), err)
	}
	status := "done"
	if err != nil {
		status = "failed"
	}
	p.publish(runID, name, status)
	return err
}

func (p *Pipeline) publish(runID, step, status string) {
	if p.Progress == nil {
		return
	}
	p.Progress.Broadcast(ProgressEvent{RunID: runID, Step: step, Status: status, At: p.now()})
}

// fetchAll refreshes raw data for every configured series. Failures are
// logged per series; the run continues with whatever is persisted.
func (p *Pipeline) fetchAll(ctx context.Context) {
	for _, name := range p.seriesNames() {
		meta := p.Series.Series[name]
		start := p.now()
		obs, err := p.Fetcher.Fetch(ctx, meta.Source, meta.ID)
		if p.Metrics != nil {
			p.Metrics.RecordFetch(meta.Source, p.now().Sub(start), err)
		}
		if err != nil {
			log.Warn().Str("series", name).Str("source", meta.Source).
				Str("id", meta.ID).Err(err).Msg("Fetch failed, will use persisted raw data")
			continue
		}
		path, err := p.Store.SaveRaw(name, obs)
		if err != nil {
			log.Warn().Str("series", name).Err(err).Msg("Failed to persist raw data")
			continue
		}
		log.Info().Str("series", name).Str("path", path).Int("rows", len(obs)).Msg("Fetched")
	}
}

// buildPanel loads, resamples, and transforms every series concurrently,
// then outer-joins and gap-fills. Missing series are skipped with a
// warning; when nothing loads, the sample processed dataset is tried
// before giving up.
func (p *Pipeline) buildPanel(ctx context.Context, mode domain.Mode) (*domain.Panel, error) {
	names := p.seriesNames()

	var mu sync.Mutex
	cols := make(map[string]domain.PanelColumn, len(names))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, name := range names {
		name := name
		g.Go(func() error {
			meta := p.Series.Series[name]
			obs, err := p.Store.LoadLatest(name)
			if err != nil {
				var notFound *domain.NotFoundError
				if errors.As(err, &notFound) {
					log.Warn().Str("series", name).Msg("No raw data, skipping series")
					return nil
				}
				log.Warn().Str("series", name).Err(err).Msg("Failed to load raw data, skipping series")
				return nil
			}

			monthly, err := domain.ResampleMonthly(obs, domain.AggLast)
			if err != nil {
				return err
			}
			configured, err := domain.ParseTransform(meta.Transform)
			if err != nil {
				return err
			}
			transformed, err := domain.ApplyTransform(monthly, domain.EffectiveTransform(mode, configured))
			if err != nil {
				return err
			}

			mu.Lock()
			cols[name] = domain.PanelColumn{
				Name:   name,
				Role:   domain.Role(meta.Role),
				Series: transformed,
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(cols) == 0 {
		if panel, err := p.loadSamplePanel(mode); err == nil {
			log.Warn().Msg("No raw series loaded; using sample processed dataset")
			return panel, nil
		}
		return nil, &domain.InsufficientDataError{Subject: "loadable series", Have: 0, Need: 1}
	}

	ordered := make([]domain.PanelColumn, 0, len(cols))
	for _, name := range names {
		if c, ok := cols[name]; ok {
			ordered = append(ordered, c)
		}
	}
	panel, err := domain.MergePanel(ordered)
	if err != nil {
		return nil, err
	}
	panel.BoundedFill(3)
	return panel, nil
}

// rollingFrames runs the rolling correlation over a bounded lookback,
// retrying over full history when the trimmed panel yields nothing.
func (p *Pipeline) rollingFrames(_ context.Context, panel *domain.Panel) []domain.RollingFrame {
	window := p.Viz.RollingWindowMonths
	trimmed := panel
	if panel.Rows() > 0 {
		last := panel.Dates[panel.Rows()-1]
		// Keep one extra window of history so the first frame inside the
		// lookback is still computable.
		start := last.AddDate(0, -(p.Viz.RollingLookbackMonths + window - 1), 0)
		trimmed = panel.TrimFrom(start)
	}

	frames := domain.RollingCorrelation(trimmed, window, p.Viz.MinPairObs)
	if len(frames) == 0 && trimmed.Rows() < panel.Rows() {
		log.Warn().Err(domain.ErrNoRollingFrames).Msg("Retrying rolling correlation over full history")
		frames = domain.RollingCorrelation(panel, window, p.Viz.MinPairObs)
	}
	return frames
}

// resolveOrder determines the canonical display order: clustered (or
// lexicographic) order of the static labels, extended with any panel
// labels missing from the static window.
func (p *Pipeline) resolveOrder(static domain.Matrix, panel *domain.Panel, labelMap map[string]string) []string {
	var primary []string
	if p.Viz.Cluster && len(static.Labels) > 2 {
		primary = domain.ClusterOrder(static)
	} else {
		primary = domain.LexicalOrder(static.Labels)
	}

	all := make([]string, 0, len(panel.Columns))
	for _, name := range panel.CorrelatedColumns() {
		all = append(all, labelMap[name])
	}
	return domain.MergeOrder(primary, all)
}

func (p *Pipeline) labelMap(panel *domain.Panel) map[string]string {
	m := make(map[string]string, len(panel.Columns))
	for _, name := range panel.Columns {
		m[name] = p.Series.Series[name].DisplayLabel(name)
	}
	return m
}

// seriesNames returns configured names in deterministic order.
func (p *Pipeline) seriesNames() []string {
	names := make([]string, 0, len(p.Series.Series))
	for name := range p.Series.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) logCoverage(panel *domain.Panel, logger zerolog.Logger) {
	for _, cov := range panel.CoverageReport() {
		if cov.Count == 0 {
			logger.Info().Str("series", cov.Column).Msg("Coverage: no data")
			continue
		}
		logger.Info().Str("series", cov.Column).
			Str("first", cov.First.Format("2006-01-02")).
			Str("last", cov.Last.Format("2006-01-02")).
			Int("obs", cov.Count).Msg("Coverage")
	}
}

// emit writes all run artifacts. Every failure here is a warning: the
// static and animated outputs are independent, and a failed render never
// aborts the data pipeline.
func (p *Pipeline) emit(ctx context.Context, result *RunResult, startedAt time.Time) {
	stamp := startedAt.Format("2006-01-02")
	mode := string(result.Mode)
	record := artifacts.RunRecord{RunID: result.RunID, Mode: mode, StartedAt: startedAt}

	if p.Panels != nil {
		path := filepath.Join(p.Paths.ProcessedDir, fmt.Sprintf("monthly_%s_%s.csv", mode, stamp))
		if err := p.Panels.EmitPanelCSV(path, result.Panel); err != nil {
			log.Warn().Err(err).Msg("Failed to write panel snapshot")
		} else {
			record.Add("panel", path)
		}
	}

	if p.Heatmap != nil {
		title := fmt.Sprintf("Correlation Heatmap - Last %dm - %s", p.Viz.LookbackMonths, stamp)
		dated := []string{
			filepath.Join(p.Paths.FiguresDir, fmt.Sprintf("corr_heatmap_%s_%d_%s.csv", mode, p.Viz.LookbackMonths, stamp)),
			filepath.Join(p.Paths.FiguresDir, fmt.Sprintf("corr_heatmap_%s_%d_%s.json", mode, p.Viz.LookbackMonths, stamp)),
		}
		latest := []string{
			filepath.Join(p.Paths.FiguresDir, fmt.Sprintf("corr_heatmap_%s_latest.csv", mode)),
			filepath.Join(p.Paths.FiguresDir, fmt.Sprintf("corr_heatmap_%s_latest.json", mode)),
		}
		if err := p.Heatmap.RenderHeatmap(ctx, result.Static, title, append(dated, latest...)); err != nil {
			log.Warn().Err(err).Msg("Failed to render heatmap")
		} else {
			for _, path := range dated {
				record.Add("heatmap", path)
			}
		}
	}

	if p.Animation != nil {
		dated := filepath.Join(p.Paths.AnimationsDir, fmt.Sprintf("corr_rolling_%s_%d_%s.json", mode, p.Viz.RollingWindowMonths, stamp))
		latest := filepath.Join(p.Paths.AnimationsDir, fmt.Sprintf("corr_rolling_%s_latest.json", mode))
		if err := p.Animation.RenderAnimation(ctx, result.Rolling, result.Order, p.Viz.RollingWindowMonths, result.Mode, dated); err != nil {
			log.Warn().Err(err).Str("path", dated).Msg("Failed to render rolling animation")
		} else {
			record.Add("animation", dated)
		}
		if err := p.Animation.RenderAnimation(ctx, result.Rolling, result.Order, p.Viz.RollingWindowMonths, result.Mode, latest); err != nil {
			log.Warn().Err(err).Str("path", latest).Msg("Failed to render rolling animation")
		}
	}

	if p.Repos != nil {
		p.persist(ctx, result, startedAt)
	}

	if p.Paths.ManifestPath != "" {
		if err := artifacts.NewIO(p.Paths.ManifestPath).Append(record); err != nil {
			log.Warn().Err(err).Msg("Failed to update artifact manifest")
		}
	}

	if p.Paths.ReadmePath != "" {
		if err := ops.StampReadme(p.Paths.ReadmePath, startedAt); err != nil {
			log.Warn().Err(err).Msg("Failed to stamp README")
		}
	}
}

func (p *Pipeline) persist(ctx context.Context, result *RunResult, startedAt time.Time) {
	snapshot := persistence.PanelSnapshot{
		RunID:     result.RunID,
		Mode:      string(result.Mode),
		CreatedAt: startedAt,
		Columns:   result.Panel.Columns,
		Dates:     result.Panel.Dates,
		Cells:     make(map[string][]*float64, len(result.Panel.Columns)),
	}
	for _, col := range result.Panel.Columns {
		vals := result.Panel.ColumnValues(col)
		cells := make([]*float64, len(vals))
		for i, v := range vals {
			if !domain.IsMissing(v) {
				val := v
				cells[i] = &val
			}
		}
		snapshot.Cells[col] = cells
	}
	if err := p.Repos.Panels.SaveSnapshot(ctx, snapshot); err != nil {
		log.Warn().Err(err).Msg("Failed to persist panel snapshot")
	}

	coef := make([][]*float64, len(result.Static.Coef))
	for i, row := range result.Static.Coef {
		coef[i] = make([]*float64, len(row))
		for j, v := range row {
			if !domain.IsMissing(v) {
				val := v
				coef[i][j] = &val
			}
		}
	}
	if err := p.Repos.Correlations.SaveCorrelation(ctx, persistence.CorrelationRecord{
		RunID:     result.RunID,
		CreatedAt: startedAt,
		Lookback:  p.Viz.LookbackMonths,
		Labels:    result.Static.Labels,
		Coef:      coef,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to persist correlation matrix")
	}
}

// loadSamplePanel reads the bundled sample processed dataset for the mode.
func (p *Pipeline) loadSamplePanel(mode domain.Mode) (*domain.Panel, error) {
	path := filepath.Join(p.Paths.ProcessedDir, fmt.Sprintf("sample_monthly_%s.csv", mode))
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 || len(records[0]) < 2 || records[0][0] != "date" {
		return nil, fmt.Errorf("sample panel %s has unexpected shape", path)
	}

	names := records[0][1:]
	series := make([]domain.MonthlySeries, len(names))
	for _, rec := range records[1:] {
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		for i := range names {
			v := domain.Missing()
			if i+1 < len(rec) && rec[i+1] != "" {
				if parsed, err := strconv.ParseFloat(rec[i+1], 64); err == nil {
					v = parsed
				}
			}
			series[i].Months = append(series[i].Months, domain.MonthEnd(date))
			series[i].Values = append(series[i].Values, v)
		}
	}

	cols := make([]domain.PanelColumn, len(names))
	for i, name := range names {
		cols[i] = domain.PanelColumn{
			Name:   name,
			Role:   domain.Role(p.Series.Series[name].Role),
			Series: series[i],
		}
	}
	return domain.MergePanel(cols)
}
