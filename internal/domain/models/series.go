package models

import (
	"fmt"
	"sort"
	"time"
)

// Bar is one daily OHLCV record for a ticker.
type Bar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// AlignedSeries is an ordered (date, value) sequence for one symbol or
// indicator. Dates are strictly increasing with no duplicates; once built for
// a run the series is never mutated.
type AlignedSeries struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// NewAlignedSeries validates ordering and builds an immutable series.
func NewAlignedSeries(name string, dates []time.Time, values []float64) (AlignedSeries, error) {
	if len(dates) != len(values) {
		return AlignedSeries{}, fmt.Errorf("series %s: %d dates vs %d values", name, len(dates), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return AlignedSeries{}, fmt.Errorf("series %s: dates not strictly increasing at index %d", name, i)
		}
	}
	return AlignedSeries{Name: name, Dates: dates, Values: values}, nil
}

// Len returns the number of observations.
func (s AlignedSeries) Len() int { return len(s.Dates) }

// Index returns the position of date, or (-1, false) if absent.
func (s AlignedSeries) Index(date time.Time) (int, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(date) })
	if i < len(s.Dates) && s.Dates[i].Equal(date) {
		return i, true
	}
	return -1, false
}

// LastOnOrBefore returns the most recent value dated at or before date.
// This is the point-in-time accessor: values dated after `date` are never
// visible through it.
func (s AlignedSeries) LastOnOrBefore(date time.Time) (float64, time.Time, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(date) })
	if i == 0 {
		return 0, time.Time{}, false
	}
	return s.Values[i-1], s.Dates[i-1], true
}

// UpTo returns the prefix of the series dated at or before date.
// The returned series shares backing storage with the receiver.
func (s AlignedSeries) UpTo(date time.Time) AlignedSeries {
	i := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(date) })
	return AlignedSeries{Name: s.Name, Dates: s.Dates[:i], Values: s.Values[:i]}
}

// SeriesBundle holds every input series one ticker's features are built
// from. Prices, Market and Vol share the equity trading calendar; Macro
// series keep their native (sparse) publication dates and are only read
// through LastOnOrBefore.
type SeriesBundle struct {
	Ticker string
	Prices AlignedSeries
	Market AlignedSeries
	Vol    AlignedSeries
	Macro  map[string]AlignedSeries
}
