package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gold-trader/models"

	"github.com/jackc/pgx/v5"
)

// GetCachedSignal retrieves a cached signal for a timeframe. The cache is a
// read-through convenience; signals are always recomputable from bars.
func (r *Repository) GetCachedSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error) {
	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM signal_cache
		WHERE timeframe = $1 AND expires_at > NOW()
	`, tf).Scan(&data)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query signal cache: %w", err)
	}

	var signal models.Signal
	if err := json.Unmarshal(data, &signal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached signal: %w", err)
	}

	return &signal, nil
}

// CacheSignal stores a signal with a TTL
func (r *Repository) CacheSignal(ctx context.Context, signal *models.Signal, ttl time.Duration) error {
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO signal_cache (timeframe, data, expires_at)
		VALUES ($1, $2, NOW() + $3::interval)
		ON CONFLICT (timeframe)
		DO UPDATE SET data = EXCLUDED.data, expires_at = NOW() + $3::interval, created_at = NOW()
	`, signal.Timeframe, data, ttl.String())

	if err != nil {
		return fmt.Errorf("failed to cache signal: %w", err)
	}

	return nil
}

// InvalidateSignalCache removes the cached signal for a timeframe
func (r *Repository) InvalidateSignalCache(ctx context.Context, tf models.Timeframe) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM signal_cache WHERE timeframe = $1`, tf)
	if err != nil {
		return fmt.Errorf("failed to invalidate signal cache: %w", err)
	}
	return nil
}

// CleanExpiredSignals removes all expired cache entries
func (r *Repository) CleanExpiredSignals(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM signal_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired signals: %w", err)
	}
	return result.RowsAffected(), nil
}
