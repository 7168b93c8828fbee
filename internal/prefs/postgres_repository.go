package prefs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The store
// holds a single preference row; first read returns the defaults.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL preference repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves the stored preferences.
func (r *PostgresRepository) Get(ctx context.Context) (NotificationPreferences, error) {
	query := `
		SELECT
			day_before, day_before_hour, day_before_minute,
			wake_app, wake_offsets_min,
			native_clock, native_offset_min,
			departure, departure_offset_min,
			sound
		FROM notification_preferences
		WHERE id = 1
	`

	var p NotificationPreferences
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.DayBefore,
		&p.DayBeforeHour,
		&p.DayBeforeMin,
		&p.WakeApp,
		&p.WakeOffsetsMin,
		&p.NativeClock,
		&p.NativeOffset,
		&p.Departure,
		&p.DepartOffset,
		&p.Sound,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Default(), nil
		}
		return NotificationPreferences{}, err
	}

	return p, nil
}

// Put replaces the stored preferences.
func (r *PostgresRepository) Put(ctx context.Context, p NotificationPreferences) error {
	query := `
		INSERT INTO notification_preferences (
			id,
			day_before, day_before_hour, day_before_minute,
			wake_app, wake_offsets_min,
			native_clock, native_offset_min,
			departure, departure_offset_min,
			sound, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			day_before = EXCLUDED.day_before,
			day_before_hour = EXCLUDED.day_before_hour,
			day_before_minute = EXCLUDED.day_before_minute,
			wake_app = EXCLUDED.wake_app,
			wake_offsets_min = EXCLUDED.wake_offsets_min,
			native_clock = EXCLUDED.native_clock,
			native_offset_min = EXCLUDED.native_offset_min,
			departure = EXCLUDED.departure,
			departure_offset_min = EXCLUDED.departure_offset_min,
			sound = EXCLUDED.sound,
			updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query,
		p.DayBefore,
		p.DayBeforeHour,
		p.DayBeforeMin,
		p.WakeApp,
		p.WakeOffsetsMin,
		p.NativeClock,
		p.NativeOffset,
		p.Departure,
		p.DepartOffset,
		p.Sound,
	)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
