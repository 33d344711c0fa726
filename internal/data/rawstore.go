package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/macrocorr/internal/domain"
)

const rawDateFormat = "2006-01-02"

// RawStore persists one dated CSV per series per fetch day under a single
// directory: <name>_<YYYY-MM-DD>.csv with columns date,<name>. Loading
// always picks the most recent file for a series.
type RawStore struct {
	dir string
}

// NewRawStore creates a store rooted at dir.
func NewRawStore(dir string) *RawStore {
	return &RawStore{dir: dir}
}

// SaveRaw writes observations for a series stamped with today's date and
// returns the file path. An existing file for the same day is overwritten.
func (s *RawStore) SaveRaw(name string, obs []domain.Observation) (string, error) {
	return s.SaveRawAt(name, obs, time.Now().UTC())
}

// SaveRawAt is SaveRaw with an explicit stamp date.
func (s *RawStore) SaveRawAt(name string, obs []domain.Observation, stamp time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create raw dir: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", name, stamp.Format(rawDateFormat)))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create raw file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", name}); err != nil {
		return "", fmt.Errorf("failed to write raw header: %w", err)
	}
	for _, o := range obs {
		record := []string{o.Date.Format(rawDateFormat), strconv.FormatFloat(o.Value, 'f', -1, 64)}
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("failed to write raw row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush raw file: %w", err)
	}
	return path, nil
}

// LoadLatest reads the most recent persisted raw file for a series and
// returns its observations sorted ascending with duplicate dates collapsed
// keeping the latest-loaded value. Returns NotFoundError when no file
// matches.
func (s *RawStore) LoadLatest(name string) ([]domain.Observation, error) {
	pattern := filepath.Join(s.dir, name+"_*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob raw files: %w", err)
	}
	if len(files) == 0 {
		return nil, &domain.NotFoundError{Series: name}
	}
	sort.Strings(files)
	latest := files[len(files)-1]

	obs, err := s.readFile(latest, name)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("series", name).Str("file", latest).Int("rows", len(obs)).Msg("Loaded raw observations")
	return domain.DedupObservations(obs), nil
}

func (s *RawStore) readFile(path, name string) ([]domain.Observation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read raw file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("raw file %s is empty", path)
	}

	header := records[0]
	dateCol, valueCol := -1, -1
	for i, h := range header {
		switch {
		case strings.EqualFold(h, "date"):
			dateCol = i
		case h == name || strings.EqualFold(h, "value"):
			valueCol = i
		}
	}
	if dateCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("raw file %s missing expected columns: date, %s", path, name)
	}

	var obs []domain.Observation
	for _, record := range records[1:] {
		if len(record) <= dateCol || len(record) <= valueCol {
			continue
		}
		date, err := time.Parse(rawDateFormat, record[dateCol])
		if err != nil {
			continue
		}
		raw := strings.TrimSpace(record[valueCol])
		if raw == "" || raw == "." || strings.EqualFold(raw, "na") {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		obs = append(obs, domain.Observation{Date: date, Value: value})
	}
	return obs, nil
}
