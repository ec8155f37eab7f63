package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores flag overrides in runtime_flags, one JSONB value
// per key, along with who last changed it.
type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresRepository creates a repository on pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: time.Now}
}

const (
	selectFlags = `SELECT key, value, updated_by, updated_at FROM runtime_flags`

	upsertFlag = `
		INSERT INTO runtime_flags (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`
)

func scanFlag(row pgx.Row) (*Flag, error) {
	var (
		f   Flag
		raw []byte
	)
	if err := row.Scan(&f.Key, &raw, &f.UpdatedBy, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &f.Value); err != nil {
		return nil, fmt.Errorf("decoding flag %s: %w", f.Key, err)
	}
	return &f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, key string) (*Flag, error) {
	f, err := scanFlag(r.pool.QueryRow(ctx, selectFlags+` WHERE key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFlagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading flag %s: %w", key, err)
	}
	return f, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Flag, error) {
	rows, err := r.pool.Query(ctx, selectFlags+` ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing flags: %w", err)
	}
	defer rows.Close()

	var flags []*Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// Save upserts flags in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, flags ...*Flag) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := r.now()
		for _, f := range flags {
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return fmt.Errorf("encoding flag %s: %w", f.Key, err)
			}
			if _, err := tx.Exec(ctx, upsertFlag, f.Key, raw, f.UpdatedBy, now); err != nil {
				return fmt.Errorf("saving flag %s: %w", f.Key, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM runtime_flags WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting flag %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlagNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
