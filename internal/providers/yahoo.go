package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sawpanic/macrocorr/internal/domain"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource fetches daily close prices from the Yahoo Finance chart API.
// Ticker alternates and FRED proxies for blocked tickers are configured in
// the fallback chain, not here.
type YahooSource struct {
	client  *Client
	baseURL string
}

// NewYahooSource builds the Yahoo source over the shared client.
func NewYahooSource(client *Client) *YahooSource {
	return &YahooSource{client: client, baseURL: yahooBaseURL}
}

func (s *YahooSource) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch downloads the full daily close history for a ticker.
func (s *YahooSource) Fetch(ctx context.Context, id string) ([]domain.Observation, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=max&interval=1d", s.baseURL, url.PathEscape(id))
	body, err := s.client.GetBody(ctx, s.Name(), u)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", id, err)
	}

	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo parse %s: %w", id, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", id, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo empty result for %s", id)
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	var obs []domain.Observation
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC()
		obs = append(obs, domain.Observation{
			Date:  time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Value: *closes[i],
		})
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("yahoo no usable closes for %s", id)
	}
	return domain.DedupObservations(obs), nil
}
