package duty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// The reminder plan is stored as JSONB alongside the duty row.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL duty repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const dutyColumns = `
	id, date, leg1_start, leg1_end,
	has_leg2, leg2_start, leg2_end,
	leg1_lines, leg2_lines,
	created_at, updated_at
`

// GetByID retrieves a duty by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Duty, error) {
	query := `SELECT ` + dutyColumns + ` FROM duties WHERE id = $1`

	var d Duty
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Date,
		&d.Leg1Start,
		&d.Leg1End,
		&d.HasLeg2,
		&d.Leg2Start,
		&d.Leg2End,
		&d.Leg1Lines,
		&d.Leg2Lines,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDutyNotFound
		}
		return nil, err
	}

	return &d, nil
}

// ListFrom retrieves all duties on or after the given calendar day.
func (r *PostgresRepository) ListFrom(ctx context.Context, day time.Time) ([]*Duty, error) {
	query := `SELECT ` + dutyColumns + ` FROM duties WHERE date >= $1 ORDER BY date`
	return r.queryDuties(ctx, query, day.Format("2006-01-02"))
}

// ListAll retrieves every stored duty.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Duty, error) {
	query := `SELECT ` + dutyColumns + ` FROM duties ORDER BY date`
	return r.queryDuties(ctx, query)
}

func (r *PostgresRepository) queryDuties(ctx context.Context, query string, args ...interface{}) ([]*Duty, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var duties []*Duty
	for rows.Next() {
		var d Duty
		err := rows.Scan(
			&d.ID,
			&d.Date,
			&d.Leg1Start,
			&d.Leg1End,
			&d.HasLeg2,
			&d.Leg2Start,
			&d.Leg2End,
			&d.Leg1Lines,
			&d.Leg2Lines,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		duties = append(duties, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return duties, nil
}

// Create creates a new duty.
func (r *PostgresRepository) Create(ctx context.Context, d *Duty) error {
	query := `
		INSERT INTO duties (` + dutyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Date,
		d.Leg1Start,
		d.Leg1End,
		d.HasLeg2,
		d.Leg2Start,
		d.Leg2End,
		d.Leg1Lines,
		d.Leg2Lines,
		d.CreatedAt,
		d.UpdatedAt,
	)
	return err
}

// Update updates an existing duty.
func (r *PostgresRepository) Update(ctx context.Context, d *Duty) error {
	query := `
		UPDATE duties SET
			date = $2,
			leg1_start = $3,
			leg1_end = $4,
			has_leg2 = $5,
			leg2_start = $6,
			leg2_end = $7,
			leg1_lines = $8,
			leg2_lines = $9,
			updated_at = $10
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Date,
		d.Leg1Start,
		d.Leg1End,
		d.HasLeg2,
		d.Leg2Start,
		d.Leg2End,
		d.Leg1Lines,
		d.Leg2Lines,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDutyNotFound
	}
	return nil
}

// Delete deletes a duty by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM duties WHERE id = $1`, id)
	return err
}

// UpdatePlan replaces the stored reminder plan for a duty.
func (r *PostgresRepository) UpdatePlan(ctx context.Context, id string, plan []ScheduledAlarm) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	result, err := r.pool.Exec(ctx,
		`UPDATE duties SET plan = $2, updated_at = now() WHERE id = $1`,
		id, data,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrDutyNotFound
	}
	return nil
}

// GetPlan returns the stored reminder plan for a duty.
func (r *PostgresRepository) GetPlan(ctx context.Context, id string) ([]ScheduledAlarm, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT plan FROM duties WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDutyNotFound
		}
		return nil, err
	}

	if len(data) == 0 {
		return nil, nil
	}

	var plan []ScheduledAlarm
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return plan, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
