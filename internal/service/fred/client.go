package fred

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"EquiCast/internal/domain/models"
	drepo "EquiCast/internal/domain/repository"
	"EquiCast/internal/service/ratelimit"
	xhttp "EquiCast/pkg/http"
	"EquiCast/pkg/util"
)

const dateLayout = "2006-01-02"

// Client implements a MacroDataSource backed by the FRED observations API.
type Client struct {
	apiKey  string
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

// New creates a FRED observations client.
func New(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) drepo.MacroDataSource {
	if baseURL == "" {
		baseURL = "https://api.stlouisfed.org/fred"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: limiter,
	}
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"` // "." means no observation
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
}

// Observations fetches a macro series over [from, to], ordered by date.
// Missing observations (value ".") are dropped.
func (c *Client) Observations(ctx context.Context, seriesID string, from, to time.Time) (models.AlignedSeries, error) {
	if c.limiter != nil && !c.limiter.Allow("fred", 60, 1) {
		return models.AlignedSeries{}, fmt.Errorf("fred %s: %w", seriesID, models.ErrRateLimited)
	}

	var or observationsResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/series/observations",
		QueryParams: map[string][]string{
			"series_id":         {seriesID},
			"api_key":           {c.apiKey},
			"file_type":         {"json"},
			"observation_start": {from.Format(dateLayout)},
			"observation_end":   {to.Format(dateLayout)},
			"sort_order":        {"asc"},
		},
	}, &or)
	if err != nil {
		return models.AlignedSeries{}, fmt.Errorf("fred %s: %w: %v", seriesID, models.ErrDataUnavailable, err)
	}
	if len(or.Observations) == 0 {
		return models.AlignedSeries{}, fmt.Errorf("fred %s: %w: empty series", seriesID, models.ErrDataUnavailable)
	}

	dates := make([]time.Time, 0, len(or.Observations))
	values := make([]float64, 0, len(or.Observations))
	for _, obs := range or.Observations {
		if obs.Value == "." {
			continue
		}
		d, ok := util.ParseTime(obs.Date)
		if !ok {
			return models.AlignedSeries{}, fmt.Errorf("fred %s: bad date %q", seriesID, obs.Date)
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			return models.AlignedSeries{}, fmt.Errorf("fred %s: bad value %q: %w", seriesID, obs.Value, err)
		}
		dates = append(dates, util.Day(d))
		values = append(values, v)
	}
	if len(dates) == 0 {
		return models.AlignedSeries{}, fmt.Errorf("fred %s: %w: no usable observations", seriesID, models.ErrDataUnavailable)
	}

	return models.NewAlignedSeries(seriesID, dates, values)
}
