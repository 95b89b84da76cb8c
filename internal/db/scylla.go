package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"

	"homematch/internal/property"
)

// ScyllaRepository keeps listings in one table keyed by id. Scylla cannot do
// substring matching, so filtering happens after a full scan; the table is
// expected to stay within a few thousand rows.
type ScyllaRepository struct {
	session  *gocql.Session
	keyspace string
	log      zerolog.Logger
}

func NewScyllaRepository(session *gocql.Session, keyspace string, log zerolog.Logger) *ScyllaRepository {
	return &ScyllaRepository{session: session, keyspace: keyspace, log: log.With().Str("component", "scylla").Logger()}
}

func (s *ScyllaRepository) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.properties (
		id text PRIMARY KEY,
		title text,
		location text,
		price double,
		bedrooms int,
		bathrooms int,
		size_sqft int,
		school_rating double,
		commute_time double,
		age_years double,
		amenities set<text>,
		updated_at timestamp
	)`, s.keyspace)
	if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return s.ensureAmenitiesKnownColumn(ctx)
}

// An empty set<text> reads back as null, so a separate flag records whether
// the listing carried amenity information at all.
func (s *ScyllaRepository) ensureAmenitiesKnownColumn(ctx context.Context) error {
	err := s.session.Query(fmt.Sprintf(`ALTER TABLE %s.properties ADD amenities_known boolean`, s.keyspace)).WithContext(ctx).Exec()
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already") || strings.Contains(msg, "conflict") {
		return nil
	}
	return err
}

func (s *ScyllaRepository) FetchCandidates(ctx context.Context, filter property.Filter) ([]property.Record, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if filter.Match(r) {
			out = append(out, r)
		}
	}
	return limit(out, filter.Limit), nil
}

func (s *ScyllaRepository) Get(ctx context.Context, id string) (property.Record, error) {
	var row scyllaRow
	err := s.session.Query(fmt.Sprintf(`SELECT %s FROM %s.properties WHERE id=?`, scyllaColumns, s.keyspace), id).
		WithContext(ctx).
		Scan(row.dest()...)
	if errors.Is(err, gocql.ErrNotFound) {
		return property.Record{}, property.ErrNotFound
	}
	if err != nil {
		return property.Record{}, fmt.Errorf("get property %s: %w", id, err)
	}
	return row.record(), nil
}

func (s *ScyllaRepository) List(ctx context.Context, query string, n int) ([]property.Record, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if property.MatchesQuery(r, query) {
			out = append(out, r)
		}
	}
	return limit(out, n), nil
}

func (s *ScyllaRepository) Upsert(ctx context.Context, records ...property.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	stmt := fmt.Sprintf(`INSERT INTO %s.properties (%s,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`, s.keyspace, scyllaColumns)
	now := time.Now()
	for _, r := range records {
		err := s.session.Query(stmt,
			r.ID, r.Title, r.Location, r.Price, r.Bedrooms, r.Bathrooms, r.SizeSqft,
			r.SchoolRating, r.CommuteTime, r.AgeYears, r.Amenities, r.Amenities != nil, now,
		).WithContext(ctx).Exec()
		if err != nil {
			return fmt.Errorf("upsert property %s: %w", r.ID, err)
		}
	}
	s.log.Debug().Int("count", len(records)).Msg("properties upserted")
	return nil
}

func (s *ScyllaRepository) Count(ctx context.Context) (int, error) {
	var n int64
	err := s.session.Query(fmt.Sprintf(`SELECT COUNT(*) FROM %s.properties`, s.keyspace)).WithContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return int(n), nil
}

func (s *ScyllaRepository) Ping(ctx context.Context) error {
	var release string
	return s.session.Query(`SELECT release_version FROM system.local`).WithContext(ctx).Scan(&release)
}

func (s *ScyllaRepository) scan(ctx context.Context) ([]property.Record, error) {
	iter := s.session.Query(fmt.Sprintf(`SELECT %s FROM %s.properties`, scyllaColumns, s.keyspace)).
		WithContext(ctx).Iter()
	out := []property.Record{}
	var row scyllaRow
	for iter.Scan(row.dest()...) {
		out = append(out, row.record())
		row = scyllaRow{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scan properties: %w", err)
	}
	property.SortByID(out)
	return out, nil
}

const scyllaColumns = `id,title,location,price,bedrooms,bathrooms,size_sqft,school_rating,commute_time,age_years,amenities,amenities_known`

type scyllaRow struct {
	property.Record
	amenitiesKnown *bool
}

func (r *scyllaRow) dest() []any {
	return []any{&r.ID, &r.Title, &r.Location, &r.Price, &r.Bedrooms, &r.Bathrooms, &r.SizeSqft,
		&r.SchoolRating, &r.CommuteTime, &r.AgeYears, &r.Amenities, &r.amenitiesKnown}
}

// record restores the nil/empty amenities distinction lost by the set type.
func (r *scyllaRow) record() property.Record {
	rec := r.Record
	switch {
	case r.amenitiesKnown != nil && *r.amenitiesKnown && rec.Amenities == nil:
		rec.Amenities = []string{}
	case r.amenitiesKnown != nil && !*r.amenitiesKnown:
		rec.Amenities = nil
	}
	return rec
}

func limit(records []property.Record, n int) []property.Record {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
