// Package progress holds the live values of every tracked signal.
package progress

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// Store is the single mutable progress record. All reads go through
// Snapshot, which copies the record under the lock.
type Store struct {
	mu       sync.RWMutex
	day      string
	steps    int
	workout  int
	location *domain.Location
	lastSync time.Time

	now    func() time.Time
	cache  domain.ProgressCache
	logger *zap.Logger

	subsMu sync.Mutex
	subs   map[int]chan domain.ProgressSnapshot
	nextID int
}

// NewStore creates a store using the wall clock. cache may be nil.
func NewStore(cache domain.ProgressCache, logger *zap.Logger) *Store {
	return NewStoreWithClock(cache, time.Now, logger)
}

// NewStoreWithClock creates a store with an injected clock (for testing).
func NewStoreWithClock(cache domain.ProgressCache, now func() time.Time, logger *zap.Logger) *Store {
	return &Store{
		day:    domain.DayOf(now()),
		now:    now,
		cache:  cache,
		logger: logger,
		subs:   make(map[int]chan domain.ProgressSnapshot),
	}
}

// Load restores the store from the cache. Counters from another day are
// ignored so they start from zero; the location is kept regardless.
func (s *Store) Load() error {
	if s.cache == nil {
		return nil
	}
	rec, err := s.cache.Load()
	if err != nil {
		return fmt.Errorf("load progress cache: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.location = copyLocation(rec.Location)
	s.lastSync = rec.LastSync

	today := domain.DayOf(s.now())
	if rec.Day != today {
		if rec.Day != "" && rec.Day != s.day {
			s.logger.Debug("progress cache is stale, starting fresh",
				zap.String("cached_day", rec.Day),
				zap.String("today", today))
		}
		s.day = today
		s.steps = 0
		s.workout = 0
		return nil
	}
	s.day = rec.Day
	s.steps = nonNegative(rec.Steps)
	s.workout = nonNegative(rec.WorkoutMinutes)
	return nil
}

// Snapshot returns a consistent copy of all signals at the current time.
// Counters read as zero once the day has changed, even before Rollover runs.
func (s *Store) Snapshot() domain.ProgressSnapshot {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshotLocked(now)
	if s.day != domain.DayOf(now) {
		snap.StepsToday = 0
		snap.WorkoutMinutesToday = 0
	}
	return snap
}

// Day returns the calendar day the counters belong to.
func (s *Store) Day() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// AddSteps adds n manually entered steps.
func (s *Store) AddSteps(n int) error {
	if n < 0 {
		return fmt.Errorf("steps must be >= 0, got %d", n)
	}
	s.update(func() { s.steps += n })
	return nil
}

// AddWorkout adds manually entered workout minutes.
func (s *Store) AddWorkout(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("workout minutes must be >= 0, got %d", minutes)
	}
	s.update(func() { s.workout += minutes })
	return nil
}

// SetLocation replaces the current location. nil clears it.
func (s *Store) SetLocation(loc *domain.Location) {
	copied := copyLocation(loc)
	s.update(func() { s.location = copied })
}

// SetRemote stores totals fetched from the remote fitness source.
// Remote totals only raise the counters; manual additions made today are kept.
func (s *Store) SetRemote(steps, workoutMinutes int) {
	s.update(func() {
		if steps > s.steps {
			s.steps = steps
		}
		if workoutMinutes > s.workout {
			s.workout = workoutMinutes
		}
		s.lastSync = s.now()
	})
}

// Rollover resets the daily counters when the calendar day has changed.
// It reports whether a reset happened.
func (s *Store) Rollover() bool {
	now := s.now()
	today := domain.DayOf(now)

	s.mu.Lock()
	if s.day == today {
		s.mu.Unlock()
		return false
	}
	s.logger.Info("day changed, resetting progress",
		zap.String("from", s.day),
		zap.String("to", today))
	s.day = today
	s.steps = 0
	s.workout = 0
	s.persistLocked()
	s.publish(s.snapshotLocked(now))
	s.mu.Unlock()
	return true
}

// Subscribe registers for snapshots emitted after every update. The channel
// holds only the latest snapshot; a slow reader skips intermediate ones.
// cancel unregisters and closes the channel; it is safe to call twice.
func (s *Store) Subscribe() (<-chan domain.ProgressSnapshot, func()) {
	ch := make(chan domain.ProgressSnapshot, 1)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) update(mutate func()) {
	now := s.now()

	s.mu.Lock()
	if today := domain.DayOf(now); s.day != today {
		s.day = today
		s.steps = 0
		s.workout = 0
	}
	mutate()
	s.persistLocked()
	// Published under the lock so subscribers see snapshots in update order.
	s.publish(s.snapshotLocked(now))
	s.mu.Unlock()
}

func (s *Store) snapshotLocked(now time.Time) domain.ProgressSnapshot {
	return domain.ProgressSnapshot{
		StepsToday:          s.steps,
		WorkoutMinutesToday: s.workout,
		CurrentLocation:     copyLocation(s.location),
		Now:                 now,
		LastSync:            s.lastSync,
	}
}

func (s *Store) persistLocked() {
	if s.cache == nil {
		return
	}
	rec := domain.ProgressRecord{
		Day:            s.day,
		Steps:          s.steps,
		WorkoutMinutes: s.workout,
		Location:       copyLocation(s.location),
		LastSync:       s.lastSync,
	}
	if err := s.cache.Save(rec); err != nil {
		s.logger.Warn("failed to persist progress", zap.Error(err))
	}
}

func (s *Store) publish(snap domain.ProgressSnapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func copyLocation(loc *domain.Location) *domain.Location {
	if loc == nil {
		return nil
	}
	l := *loc
	return &l
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
