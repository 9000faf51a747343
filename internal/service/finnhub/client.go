package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"EquiCast/internal/domain/models"
	drepo "EquiCast/internal/domain/repository"
	"EquiCast/internal/service/ratelimit"
	xhttp "EquiCast/pkg/http"
	"EquiCast/pkg/util"
)

// Client implements a MarketDataSource backed by the Finnhub candle REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

// New creates a Finnhub daily-candle client.
func New(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) drepo.MarketDataSource {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: limiter,
	}
}

// candleResponse mirrors the /stock/candle payload: parallel arrays plus a
// status field ("ok" or "no_data").
type candleResponse struct {
	Status string    `json:"s"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Times  []int64   `json:"t"` // unix seconds
}

// DailyBars fetches daily candles for symbol over [from, to].
func (c *Client) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	if c.limiter != nil && !c.limiter.Allow("finnhub", 30, 0.5) {
		return nil, fmt.Errorf("finnhub %s: %w", symbol, models.ErrRateLimited)
	}

	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method: http.MethodGet,
		URL:    c.baseURL + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {strconv.FormatInt(from.Unix(), 10)},
			"to":         {strconv.FormatInt(to.Unix(), 10)},
			"token":      {c.apiKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("finnhub %s: %w: %v", symbol, models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("finnhub %s: %w", symbol, models.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("finnhub %s: %w: status %d: %s", symbol, models.ErrDataUnavailable, resp.StatusCode, body)
	}

	var cr candleResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("finnhub %s: decode: %w", symbol, err)
	}
	if cr.Status != "ok" || len(cr.Times) == 0 {
		return nil, fmt.Errorf("finnhub %s: %w: status %q", symbol, models.ErrDataUnavailable, cr.Status)
	}
	if len(cr.Close) != len(cr.Times) {
		return nil, fmt.Errorf("finnhub %s: %d closes vs %d timestamps", symbol, len(cr.Close), len(cr.Times))
	}

	bars := make([]models.Bar, 0, len(cr.Times))
	for i, ts := range cr.Times {
		bar := models.Bar{
			Ticker: symbol,
			Date:   util.Day(time.Unix(ts, 0)),
			Close:  cr.Close[i],
		}
		if i < len(cr.Open) {
			bar.Open = cr.Open[i]
		}
		if i < len(cr.High) {
			bar.High = cr.High[i]
		}
		if i < len(cr.Low) {
			bar.Low = cr.Low[i]
		}
		if i < len(cr.Volume) {
			bar.Volume = int64(cr.Volume[i])
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
