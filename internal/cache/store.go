package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidTTL is wrapped by the ConfigurationError returned from Set when ttl <= 0.
var ErrInvalidTTL = errors.New("ttl must be positive")

// ConfigurationError reports a store that cannot run with the given settings.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cache configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type Config struct {
	MaxSize    int
	DefaultTTL time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (c Config) validate() error {
	if c.MaxSize <= 0 {
		return &ConfigurationError{Field: "maxSize", Reason: fmt.Sprintf("must be positive, got %d", c.MaxSize)}
	}
	if c.DefaultTTL <= 0 {
		return &ConfigurationError{Field: "defaultTtl", Reason: fmt.Sprintf("must be positive, got %s", c.DefaultTTL), Err: ErrInvalidTTL}
	}
	return nil
}

// Entry is one cached value. Entries form a doubly-linked list between the
// store's sentinels: head.next is the most recently used, tail.prev the least.
type Entry struct {
	Key          string
	Value        any
	CreatedAt    time.Time
	LastAccessed time.Time
	ExpiresAt    time.Time

	prev *Entry
	next *Entry
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats is a point-in-time view of the store. Size counts live entries only;
// Stored also includes expired entries that have not been purged yet.
type Stats struct {
	Size      int     `json:"size"`
	Stored    int     `json:"stored"`
	MaxSize   int     `json:"maxSize"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// Store is a bounded key/value store with TTL expiry and LRU eviction.
// A single mutex guards the map, the list and the counters. Locked methods
// never call other exported methods.
type Store struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	items map[string]*Entry
	head  *Entry
	tail  *Entry

	hits      int64
	misses    int64
	evictions int64
}

func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	s := &Store{
		cfg:   cfg,
		now:   now,
		items: make(map[string]*Entry, cfg.MaxSize),
		head:  &Entry{},
		tail:  &Entry{},
	}
	s.resetList()
	return s, nil
}

func (s *Store) DefaultTTL() time.Duration {
	return s.cfg.DefaultTTL
}

func (s *Store) MaxSize() int {
	return s.cfg.MaxSize
}

// Get returns the value for key. Absent and expired keys are misses; an
// expired entry is dropped on the way out. Callers must not mutate the value.
func (s *Store) Get(key string) (any, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if entry.expired(now) {
		s.removeEntry(entry)
		s.misses++
		return nil, false
	}
	entry.LastAccessed = now
	s.moveToFront(entry)
	s.hits++
	return entry.Value, true
}

// Set stores value under key for ttl. An existing key is replaced and becomes
// the most recently used. A new key on a full store first purges expired
// entries and only evicts the LRU entry if that frees nothing.
func (s *Store) Set(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return &ConfigurationError{Field: "ttl", Reason: fmt.Sprintf("must be positive, got %s", ttl), Err: ErrInvalidTTL}
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.items[key]; ok {
		entry.Value = value
		entry.CreatedAt = now
		entry.LastAccessed = now
		entry.ExpiresAt = now.Add(ttl)
		s.moveToFront(entry)
		return nil
	}

	if len(s.items) >= s.cfg.MaxSize {
		s.purgeExpired(now)
	}
	for len(s.items) >= s.cfg.MaxSize {
		if !s.evictOldest() {
			break
		}
	}
	entry := &Entry{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(ttl),
	}
	s.addToFront(entry)
	s.items[key] = entry
	return nil
}

// SetDefault stores value with the store's default TTL.
func (s *Store) SetDefault(key string, value any) error {
	return s.Set(key, value, s.cfg.DefaultTTL)
}

// Clear drops every entry. Hit, miss and eviction counters are lifetime
// counters and survive.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*Entry, s.cfg.MaxSize)
	s.resetList()
}

// CleanupExpired removes every expired entry and returns how many went.
// Survivors keep their relative LRU order.
func (s *Store) CleanupExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeExpired(now)
}

func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Size:      s.liveCount(now),
		Stored:    len(s.items),
		MaxSize:   s.cfg.MaxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

// Keys lists live keys from most to least recently used without touching
// access order.
func (s *Store) Keys() []string {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for entry := s.head.next; entry != s.tail; entry = entry.next {
		if !entry.expired(now) {
			out = append(out, entry.Key)
		}
	}
	return out
}

// Internal methods below must be called with mu held.

func (s *Store) resetList() {
	s.head.next = s.tail
	s.tail.prev = s.head
}

func (s *Store) addToFront(entry *Entry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *Store) unlink(entry *Entry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	entry.prev = nil
	entry.next = nil
}

func (s *Store) moveToFront(entry *Entry) {
	s.unlink(entry)
	s.addToFront(entry)
}

func (s *Store) removeEntry(entry *Entry) {
	s.unlink(entry)
	delete(s.items, entry.Key)
}

func (s *Store) purgeExpired(now time.Time) int {
	removed := 0
	for entry := s.tail.prev; entry != s.head; {
		prev := entry.prev
		if entry.expired(now) {
			s.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

func (s *Store) liveCount(now time.Time) int {
	n := 0
	for entry := s.head.next; entry != s.tail; entry = entry.next {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

func (s *Store) evictOldest() bool {
	oldest := s.tail.prev
	if oldest == s.head {
		return false
	}
	s.removeEntry(oldest)
	s.evictions++
	return true
}
