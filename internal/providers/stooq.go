package providers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sawpanic/macrocorr/internal/domain"
)

const stooqBaseURL = "https://stooq.com/q/d/l/"

// StooqSource fetches daily close prices from the Stooq CSV endpoint.
type StooqSource struct {
	client  *Client
	baseURL string
}

// NewStooqSource builds the Stooq source over the shared client.
func NewStooqSource(client *Client) *StooqSource {
	return &StooqSource{client: client, baseURL: stooqBaseURL}
}

func (s *StooqSource) Name() string { return "stooq" }

// Fetch downloads full daily history for a symbol and keeps the close.
func (s *StooqSource) Fetch(ctx context.Context, id string) ([]domain.Observation, error) {
	sym := normalizeStooqSymbol(id)
	u := s.baseURL + "?s=" + url.QueryEscape(sym) + "&i=d"
	body, err := s.client.GetBody(ctx, s.Name(), u)
	if err != nil {
		return nil, fmt.Errorf("stooq fetch %s: %w", id, err)
	}
	obs, err := parseStooqCSV(string(body))
	if err != nil {
		return nil, fmt.Errorf("stooq parse %s: %w", id, err)
	}
	return domain.DedupObservations(obs), nil
}

// normalizeStooqSymbol lowercases and appends the .us market suffix for
// short plain-alpha US tickers, matching Stooq's naming.
func normalizeStooqSymbol(id string) string {
	sym := strings.ToLower(strings.TrimSpace(id))
	switch strings.ToUpper(sym) {
	case "SPY", "SPY.US", "SPX", "^SPX":
		return "spy.us"
	}
	if strings.HasSuffix(sym, ".us") {
		return sym
	}
	if len(sym) <= 5 && isAlpha(sym) {
		return sym + ".us"
	}
	return sym
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func parseStooqCSV(text string) ([]domain.Observation, error) {
	if !strings.HasPrefix(strings.ToLower(text), "date,open,high,low,close") {
		return nil, fmt.Errorf("unexpected response shape")
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	header := records[0]
	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(h) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("missing date/close columns %v", header)
	}

	var obs []domain.Observation
	for _, record := range records[1:] {
		if len(record) <= closeCol {
			continue
		}
		date, err := time.Parse("2006-01-02", record[dateCol])
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(record[closeCol], 64)
		if err != nil {
			continue
		}
		obs = append(obs, domain.Observation{Date: date.UTC(), Value: value})
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	return obs, nil
}
