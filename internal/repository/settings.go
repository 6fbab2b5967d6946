package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

const (
	getSettingSQL = `SELECT value FROM settings WHERE key = $1`

	upsertSettingSQL = `INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description`
)

var _ shipping.SettingsStore = (*SettingsRepository)(nil)

// SettingsRepository reads and writes the key/value configuration store.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetValue returns the raw value stored under key.
func (r *SettingsRepository) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := r.pool.QueryRow(ctx, getSettingSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(ctx context.Context, key, value, description string) error {
	if _, err := r.pool.Exec(ctx, upsertSettingSQL, key, value, description); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}
