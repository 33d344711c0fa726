package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/macrocorr/internal/domain"
)

const fredBaseURL = "https://fred.stlouisfed.org/graph/fredgraph.csv"

// FREDSource fetches series from the St. Louis Fed fredgraph CSV endpoint.
// Missing values arrive as "." and are skipped.
type FREDSource struct {
	client  *Client
	baseURL string
}

// NewFREDSource builds the FRED source over the shared client.
func NewFREDSource(client *Client) *FREDSource {
	return &FREDSource{client: client, baseURL: fredBaseURL}
}

func (s *FREDSource) Name() string { return "fred" }

// Fetch downloads and parses one FRED series.
func (s *FREDSource) Fetch(ctx context.Context, id string) ([]domain.Observation, error) {
	u := s.baseURL + "?id=" + url.QueryEscape(id)
	body, err := s.client.GetBody(ctx, s.Name(), u)
	if err != nil {
		return nil, fmt.Errorf("fred fetch %s: %w", id, err)
	}
	obs, err := parseFREDCSV(string(body), id)
	if err != nil {
		return nil, fmt.Errorf("fred parse %s: %w", id, err)
	}
	return domain.DedupObservations(obs), nil
}

func parseFREDCSV(text, id string) ([]domain.Observation, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("empty response")
	}

	header := records[0]
	dateCol, valueCol := -1, -1
	for i, h := range header {
		switch {
		// The endpoint has used DATE and observation_date across versions.
		case strings.EqualFold(h, "date") || strings.EqualFold(h, "observation_date"):
			dateCol = i
		case strings.EqualFold(h, id):
			valueCol = i
		}
	}
	if dateCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("unexpected columns %v", header)
	}

	var obs []domain.Observation
	for _, record := range records[1:] {
		if len(record) <= dateCol || len(record) <= valueCol {
			continue
		}
		date, err := time.Parse("2006-01-02", record[dateCol])
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
		obs = append(obs, domain.Observation{Date: date.UTC(), Value: value})
	}
	return obs, nil
}
