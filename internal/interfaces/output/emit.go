package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sawpanic/macrocorr/internal/domain"
)

// Emitter writes correlation matrices, rolling sequences, and panel
// snapshots as flat CSV/JSON artifacts. It is the bundled render sink;
// image and GIF rendering belong to an external collaborator consuming
// these files.
type Emitter struct{}

// NewEmitter creates an emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// RenderHeatmap writes the static matrix to every given path, CSV or JSON
// by extension.
func (e *Emitter) RenderHeatmap(_ context.Context, m domain.Matrix, title string, paths []string) error {
	for _, path := range paths {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			err = e.writeMatrixJSON(path, m, title)
		default:
			err = e.writeMatrixCSV(path, m)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderAnimation writes the rolling sequence as one JSON document: the
// canonical series order, window length, mode, and one frame per window
// end date in chronological order.
func (e *Emitter) RenderAnimation(_ context.Context, frames []domain.RollingFrame, order []string, windowMonths int, mode domain.Mode, path string) error {
	type frameDoc struct {
		End    string       `json:"end"`
		Labels []string     `json:"labels"`
		Coef   [][]*float64 `json:"coefficients"`
	}
	doc := struct {
		SeriesOrder  []string   `json:"series_order"`
		WindowMonths int        `json:"window_months"`
		Mode         string     `json:"mode"`
		Frames       []frameDoc `json:"frames"`
	}{
		SeriesOrder:  order,
		WindowMonths: windowMonths,
		Mode:         string(mode),
		Frames:       make([]frameDoc, 0, len(frames)),
	}
	for _, f := range frames {
		doc.Frames = append(doc.Frames, frameDoc{
			End:    f.End.Format("2006-01-02"),
			Labels: f.Matrix.Labels,
			Coef:   nullableCoef(f.Matrix.Coef),
		})
	}
	return writeJSONFile(path, doc)
}

func (e *Emitter) writeMatrixCSV(path string, m domain.Matrix) error {
	file, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{""}, m.Labels...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write matrix header: %w", err)
	}
	for i, label := range m.Labels {
		record := make([]string, 0, len(m.Labels)+1)
		record = append(record, label)
		for j := range m.Labels {
			record = append(record, formatCoef(m.Coef[i][j]))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write matrix row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (e *Emitter) writeMatrixJSON(path string, m domain.Matrix, title string) error {
	doc := struct {
		Title  string       `json:"title"`
		Labels []string     `json:"labels"`
		Coef   [][]*float64 `json:"coefficients"`
	}{
		Title:  title,
		Labels: m.Labels,
		Coef:   nullableCoef(m.Coef),
	}
	return writeJSONFile(path, doc)
}

// EmitPanelCSV writes the merged panel snapshot: a date column plus one
// column per series, one row per month, empty cells for missing values.
func (e *Emitter) EmitPanelCSV(path string, p *domain.Panel) error {
	file, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"date"}, p.Columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write panel header: %w", err)
	}
	for i, date := range p.Dates {
		record := make([]string, 0, len(p.Columns)+1)
		record = append(record, date.Format("2006-01-02"))
		for _, col := range p.Columns {
			v := p.ColumnValues(col)[i]
			if domain.IsMissing(v) {
				record = append(record, "")
			} else {
				record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write panel row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func nullableCoef(coef [][]float64) [][]*float64 {
	out := make([][]*float64, len(coef))
	for i, row := range coef {
		out[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				val := v
				out[i][j] = &val
			}
		}
	}
	return out
}

func formatCoef(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeJSONFile(path string, v interface{}) error {
	file, err := createWithDir(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func createWithDir(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
