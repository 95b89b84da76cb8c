package property

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// MemoryRepository keeps records in process. It backs development runs and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Record
}

func NewMemoryRepository(records ...Record) (*MemoryRepository, error) {
	m := &MemoryRepository{items: make(map[string]Record, len(records))}
	if err := m.Upsert(context.Background(), records...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryRepository) FetchCandidates(ctx context.Context, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, 0, len(m.items))
	for _, r := range m.items {
		if filter.Match(r) {
			out = append(out, cloneRecord(r))
		}
	}
	m.mu.RUnlock()
	SortByID(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *MemoryRepository) List(ctx context.Context, query string, limit int) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.items))
	for _, r := range m.items {
		if MatchesQuery(r, query) {
			out = append(out, cloneRecord(r))
		}
	}
	m.mu.RUnlock()
	SortByID(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Upsert validates every record before storing any of them.
func (m *MemoryRepository) Upsert(ctx context.Context, records ...Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.items[r.ID] = cloneRecord(r)
	}
	return nil
}

func (m *MemoryRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// LoadFile reads a JSON array of records.
func LoadFile(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// Partition splits records into usable ones and the validation errors of the rest.
func Partition(records []Record) ([]Record, []error) {
	valid := make([]Record, 0, len(records))
	var errs []error
	for _, r := range records {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// MatchesQuery reports whether title or location contains q, ignoring case.
// An empty query matches everything.
func MatchesQuery(r Record, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return q == "" || strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Location), q)
}

func SortByID(records []Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

func cloneRecord(r Record) Record {
	if r.Amenities != nil {
		r.Amenities = append([]string{}, r.Amenities...)
	}
	if r.SchoolRating != nil {
		r.SchoolRating = Float(*r.SchoolRating)
	}
	if r.CommuteTime != nil {
		r.CommuteTime = Float(*r.CommuteTime)
	}
	if r.AgeYears != nil {
		r.AgeYears = Float(*r.AgeYears)
	}
	return r
}
