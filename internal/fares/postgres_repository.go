package fares

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores summaries as jsonb in the city_fare_summaries table:
//
//	CREATE TABLE city_fare_summaries (
//		city       TEXT PRIMARY KEY,
//		summary    JSONB NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL fare summary repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get retrieves the summary of a city.
func (r *PostgresRepository) Get(ctx context.Context, city string) (*Summary, error) {
	query := `
		SELECT summary
		FROM city_fare_summaries
		WHERE city = $1
	`

	var data []byte
	err := r.pool.QueryRow(ctx, query, CityKey(city)).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save creates or replaces the summary of a city.
func (r *PostgresRepository) Save(ctx context.Context, summary *Summary) error {
	query := `
		INSERT INTO city_fare_summaries (city, summary, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (city) DO UPDATE SET
			summary = EXCLUDED.summary,
			updated_at = EXCLUDED.updated_at
	`

	key := CityKey(summary.City)
	cp := *summary
	cp.City = key
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query, key, data, time.Now())
	return err
}

// ListCities returns every stored city key, sorted.
func (r *PostgresRepository) ListCities(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT city FROM city_fare_summaries ORDER BY city`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := []string{}
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cities, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
