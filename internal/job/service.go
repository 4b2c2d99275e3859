package job

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/ahmethakanbesel/nse-scanner/internal/apperror"
	"github.com/ahmethakanbesel/nse-scanner/internal/metrics"
)

const DefaultCleanupSchedule = "@every 1m"

type Service struct {
	store   *Store
	metrics *metrics.Metrics
}

func NewService(store *Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

func (s *Service) Get(req GetJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	j, ok := s.store.Get(req.ID)
	if !ok {
		return nil, apperror.New(apperror.NotFound, "job not found")
	}
	return &j, nil
}

// Cleanup evicts expired jobs.
func (s *Service) Cleanup() int {
	n := s.store.Cleanup()
	if n > 0 {
		slog.Info("evicted expired scan jobs", "count", n)
	}
	s.metrics.SetJobs(s.store.Len())
	return n
}

// ScheduleCleanup registers Cleanup on c using a cron spec such as
// "@every 1m". The caller owns starting and stopping c.
func (s *Service) ScheduleCleanup(c *cron.Cron, spec string) error {
	if spec == "" {
		spec = DefaultCleanupSchedule
	}
	if _, err := c.AddFunc(spec, func() { s.Cleanup() }); err != nil {
		return fmt.Errorf("schedule job cleanup %q: %w", spec, err)
	}
	return nil
}
