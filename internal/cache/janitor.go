package cache

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Janitor runs CleanupExpired on a fixed interval, off the request path.
type Janitor struct {
	store     *Store
	scheduler *gocron.Scheduler
	log       zerolog.Logger
}

func NewJanitor(store *Store, interval time.Duration, log zerolog.Logger) (*Janitor, error) {
	if interval <= 0 {
		return nil, &ConfigurationError{Field: "cleanupInterval", Reason: fmt.Sprintf("must be positive, got %s", interval)}
	}
	j := &Janitor{
		store:     store,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log.With().Str("component", "cache-janitor").Logger(),
	}
	_, err := j.scheduler.Every(interval).WaitForSchedule().SingletonMode().Do(j.sweep)
	if err != nil {
		return nil, fmt.Errorf("schedule cache cleanup: %w", err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.scheduler.StartAsync()
}

// Stop halts the schedule; a sweep already in progress finishes first.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

func (j *Janitor) sweep() {
	removed := j.store.CleanupExpired()
	if removed > 0 {
		j.log.Debug().Int("removed", removed).Msg("expired cache entries removed")
	}
}
