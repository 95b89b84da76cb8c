// Package db holds the database-backed property.Repository implementations.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"homematch/internal/property"
)

const propertyColumns = `id,title,location,price,bedrooms,bathrooms,size_sqft,school_rating,commute_time,age_years,amenities`

// PostgresRepository stores listings in a single properties table. A NULL
// amenities array means the listing carries no amenity information.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPostgresRepository(pool *pgxpool.Pool, log zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, log: log.With().Str("component", "postgres").Logger()}
}

func (p *PostgresRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS properties (
			id text PRIMARY KEY,
			title text NOT NULL DEFAULT '',
			location text NOT NULL DEFAULT '',
			price double precision NOT NULL CHECK (price > 0),
			bedrooms integer NOT NULL DEFAULT 0,
			bathrooms integer NOT NULL DEFAULT 0,
			size_sqft integer NOT NULL DEFAULT 0,
			school_rating double precision,
			commute_time double precision,
			age_years double precision,
			amenities text[],
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS properties_price_idx ON properties (price)`,
		`CREATE INDEX IF NOT EXISTS properties_location_idx ON properties (lower(location))`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresRepository) FetchCandidates(ctx context.Context, filter property.Filter) ([]property.Record, error) {
	sql, args := candidateQuery(filter)
	return p.query(ctx, sql, args...)
}

func (p *PostgresRepository) Get(ctx context.Context, id string) (property.Record, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id=$1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return property.Record{}, property.ErrNotFound
	}
	if err != nil {
		return property.Record{}, fmt.Errorf("get property %s: %w", id, err)
	}
	return r, nil
}

func (p *PostgresRepository) List(ctx context.Context, query string, limit int) ([]property.Record, error) {
	sql := `SELECT ` + propertyColumns + ` FROM properties`
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, likePattern(q))
		sql += ` WHERE title ILIKE $1 OR location ILIKE $1`
	}
	sql += ` ORDER BY id`
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return p.query(ctx, sql, args...)
}

// Upsert validates every record, then writes them in one batch.
func (p *PostgresRepository) Upsert(ctx context.Context, records ...property.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO properties (`+propertyColumns+`,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
			ON CONFLICT (id) DO UPDATE SET
				title=EXCLUDED.title, location=EXCLUDED.location, price=EXCLUDED.price,
				bedrooms=EXCLUDED.bedrooms, bathrooms=EXCLUDED.bathrooms, size_sqft=EXCLUDED.size_sqft,
				school_rating=EXCLUDED.school_rating, commute_time=EXCLUDED.commute_time,
				age_years=EXCLUDED.age_years, amenities=EXCLUDED.amenities, updated_at=now()`,
			r.ID, r.Title, r.Location, r.Price, r.Bedrooms, r.Bathrooms, r.SizeSqft,
			r.SchoolRating, r.CommuteTime, r.AgeYears, r.Amenities,
		)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d properties: %w", len(records), err)
	}
	p.log.Debug().Int("count", len(records)).Msg("properties upserted")
	return nil
}

func (p *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]property.Record, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()
	out := []property.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (property.Record, error) {
	var r property.Record
	err := row.Scan(&r.ID, &r.Title, &r.Location, &r.Price, &r.Bedrooms, &r.Bathrooms, &r.SizeSqft,
		&r.SchoolRating, &r.CommuteTime, &r.AgeYears, &r.Amenities)
	return r, err
}

// candidateQuery renders the FetchCandidates statement for filter.
func candidateQuery(filter property.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		args = append(args, likePattern(loc))
		where = append(where, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if filter.MaxPrice > 0 {
		args = append(args, filter.MaxPrice)
		where = append(where, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.MinBedrooms > 0 {
		args = append(args, filter.MinBedrooms)
		where = append(where, fmt.Sprintf("bedrooms >= $%d", len(args)))
	}
	if filter.MinBathrooms > 0 {
		args = append(args, filter.MinBathrooms)
		where = append(where, fmt.Sprintf("bathrooms >= $%d", len(args)))
	}
	sql := `SELECT ` + propertyColumns + ` FROM properties`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return sql, args
}

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
