package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"EquiCast/internal/domain/models"
	"EquiCast/internal/domain/repository"
)

// ClickHouseBarRepository implements BarRepository on ClickHouse.
type ClickHouseBarRepository struct {
	db    *sql.DB
	table string
}

// NewClickHouseBarRepository creates a ClickHouse-backed bar repository.
func NewClickHouseBarRepository(db *sql.DB, table string) repository.BarRepository {
	if table == "" {
		table = "equicast.daily_bars"
	}
	return &ClickHouseBarRepository{db: db, table: table}
}

// Schema returns idempotent DDL for the bar table.
func Schema(table string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS equicast",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ticker  LowCardinality(String),
			date    Date,
			open    Float64,
			high    Float64,
			low     Float64,
			close   Float64,
			volume  Int64
		) ENGINE = ReplacingMergeTree
		ORDER BY (ticker, date)`, table),
	}
}

func (r *ClickHouseBarRepository) StoreBatch(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.Ticker == "" || b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ticker, date, open, high, low, close, volume) VALUES %s",
			r.table, strings.Join(values, ","))
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store bars %s: %w", bars[start].Ticker, err)
		}
	}
	return nil
}

func (r *ClickHouseBarRepository) Load(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	q := fmt.Sprintf(`SELECT ticker, date, open, high, low, close, volume
		FROM %s FINAL
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, q, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", ticker, err)
		}
		b.Date = b.Date.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func (r *ClickHouseBarRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
