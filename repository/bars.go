package repository

import (
	"context"
	"fmt"

	"gold-trader/models"
	"gold-trader/observability"
)

// GetBars returns up to limit bars for a timeframe in ascending timestamp
// order, ending at the latest stored bar. Indicator and forecast math both
// require ascending order.
func (r *Repository) GetBars(ctx context.Context, tf models.Timeframe, limit int) ([]models.PriceBar, error) {
	if limit <= 0 {
		limit = 500
	}

	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("select", "price_bars")

	// Take the newest rows, then flip them back to ascending.
	rows, err := r.db.Query(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM price_bars
			WHERE timeframe = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`, tf, limit)
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "price_bars")
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var bar models.PriceBar
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price bars: %w", err)
	}

	return bars, nil
}

// InsertBars upserts bars for a timeframe. Bars are immutable once stored;
// the upsert only makes re-ingestion of the same window idempotent.
func (r *Repository) InsertBars(ctx context.Context, tf models.Timeframe, bars []models.PriceBar) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("insert", "price_bars")

	for _, bar := range bars {
		_, err := r.db.Exec(ctx, `
			INSERT INTO price_bars (timeframe, timestamp, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (timeframe, timestamp) DO NOTHING
		`, tf, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			observability.GetMetrics().RecordDBError("insert", "price_bars")
			return fmt.Errorf("failed to insert price bar at %s: %w", bar.Timestamp, err)
		}
	}
	return nil
}

// CountBars returns the number of stored bars for a timeframe.
func (r *Repository) CountBars(ctx context.Context, tf models.Timeframe) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM price_bars WHERE timeframe = $1
	`, tf).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price bars: %w", err)
	}
	return count, nil
}
