package features

import (
	"fmt"
	"time"

	"EquiCast/internal/domain/models"
)

// SchemaVersion identifies the feature layout below. Any change to the
// feature set, ordering, lookbacks, or units requires a version bump so a
// retrained model and an older vector are detected as incompatible instead
// of silently misaligned.
const SchemaVersion = "v1"

// Lookbacks, in trading days.
const (
	volWindow      = 20
	rsiPeriod      = 14
	drawdownWindow = 60
	momentumDays   = 15
	vixChangeDays  = 5
)

var returnLookbacks = []int{1, 5, 15, 30}

// MacroSpec names one tracked macro indicator. YoY adds a year-over-year
// transform column for level series such as an inflation index.
type MacroSpec struct {
	Name string
	YoY  bool
}

// Builder turns an aligned series bundle into fixed-schema feature vectors.
type Builder struct {
	macro []MacroSpec
	names []string
}

// NewBuilder creates a Builder for the given macro indicator set. The macro
// order is part of the schema and must be stable across runs.
func NewBuilder(macro []MacroSpec) *Builder {
	b := &Builder{macro: macro}
	b.names = append(b.names,
		"ret_1", "ret_5", "ret_15", "ret_30",
		"momentum", "volatility", "rsi", "drawdown",
		"mkt_ret_1", "mkt_ret_5", "mkt_ret_15", "mkt_ret_30", "mkt_volatility",
		"vix_level", "vix_change",
	)
	for _, m := range macro {
		b.names = append(b.names, "macro_"+m.Name)
		if m.YoY {
			b.names = append(b.names, "macro_"+m.Name+"_yoy")
		}
	}
	return b
}

// Names returns the ordered feature names of the schema.
func (b *Builder) Names() []string { return b.names }

// Vector builds the feature vector for (bundle.Ticker, date).
//
// Every input is truncated to observations dated at or before `date` before
// anything is computed: nothing published after the target date can leak in.
// Features whose lookback exceeds the available history follow the fill
// policy (forward-fill happens at series alignment; what remains missing
// here becomes zero), so vectors near the series start stay schema-complete.
func (b *Builder) Vector(bundle *models.SeriesBundle, date time.Time) (models.FeatureVector, error) {
	prices := bundle.Prices.UpTo(date)
	if prices.Len() == 0 {
		return models.FeatureVector{}, fmt.Errorf("%s: no price history at or before %s", bundle.Ticker, date.Format("2006-01-02"))
	}
	market := bundle.Market.UpTo(date)
	vol := bundle.Vol.UpTo(date)

	values := make([]float64, 0, len(b.names))

	for _, lb := range returnLookbacks {
		values = append(values, orZero(TrailingReturn(prices.Values, lb)))
	}

	// Momentum: signed magnitude of the multi-day return.
	values = append(values, orZero(TrailingReturn(prices.Values, momentumDays)))
	values = append(values, orZero(RollingVolatility(prices.Values, volWindow)))
	values = append(values, orZero(RSI(prices.Values, rsiPeriod)))
	values = append(values, orZero(Drawdown(prices.Values, drawdownWindow)))

	for _, lb := range returnLookbacks {
		values = append(values, orZero(TrailingReturn(market.Values, lb)))
	}
	values = append(values, orZero(RollingVolatility(market.Values, volWindow)))

	if vol.Len() > 0 {
		values = append(values, vol.Values[vol.Len()-1])
	} else {
		values = append(values, 0)
	}
	values = append(values, orZero(Change(vol.Values, vixChangeDays)))

	for _, m := range b.macro {
		series, ok := bundle.Macro[m.Name]
		var cur float64
		var curDate time.Time
		var have bool
		if ok {
			cur, curDate, have = series.LastOnOrBefore(date)
		}
		if have {
			values = append(values, cur)
		} else {
			values = append(values, 0)
		}
		if m.YoY {
			yoy := 0.0
			if have {
				prev, _, okPrev := series.LastOnOrBefore(curDate.AddDate(-1, 0, 0))
				if okPrev && prev != 0 {
					yoy = cur/prev - 1
				}
			}
			values = append(values, yoy)
		}
	}

	return models.FeatureVector{
		Ticker: bundle.Ticker,
		Date:   prices.Dates[prices.Len()-1],
		Schema: SchemaVersion,
		Values: values,
	}, nil
}

func orZero(v float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return v
}
