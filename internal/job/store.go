package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
)

const (
	defaultRetention = 10 * time.Minute
	idLength         = 8
)

// Store keeps scan jobs in memory. Writers are no-ops for unknown ids and
// for jobs that already reached a terminal status.
type Store struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

type StoreOption func(*Store)

// WithRetention sets how long a job is kept after creation.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:      make(map[string]*Job),
		retention: defaultRetention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create registers a running job and returns its id.
func (s *Store) Create(strategyName, universe string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	for s.jobs[id] != nil {
		id = newID()
	}
	s.jobs[id] = &Job{
		ID:        id,
		Status:    StatusRunning,
		Strategy:  strategyName,
		Universe:  universe,
		Matches:   []strategy.Result{},
		CreatedAt: s.now(),
	}
	return id
}

func newID() string {
	return uuid.NewString()[:idLength]
}

// UpdateProgress records progress. A completed count lower than the stored
// one is ignored.
func (s *Store) UpdateProgress(id string, completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.writable(id)
	if j == nil {
		return
	}
	j.Total = total
	if completed > j.Completed {
		j.Completed = min(completed, total)
	}
}

func (s *Store) AddMatch(id string, r strategy.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.writable(id); j != nil {
		j.Matches = append(j.Matches, r.Clone())
	}
}

func (s *Store) Finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.writable(id); j != nil {
		j.Status = StatusDone
	}
}

func (s *Store) Fail(id string, code apperror.Code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.writable(id); j != nil {
		j.Status = StatusError
		j.Error = message
		j.ErrorCode = code
	}
}

// Get returns a snapshot that is safe to use after the lock is released.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// Cleanup removes jobs created more than the retention period ago,
// whatever their status, and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, j := range s.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Store) writable(id string) *Job {
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return nil
	}
	return j
}
