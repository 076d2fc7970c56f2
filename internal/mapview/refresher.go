package mapview

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartRefresher reloads the data on schedule (standard five-field cron
// syntax). An empty schedule returns a nil scheduler. The caller stops the
// returned scheduler on shutdown.
func (s *Service) StartRefresher(schedule string, timeout time.Duration) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		s.log.Info("running scheduled reload")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Reload(ctx); err != nil {
			s.log.Error("scheduled reload failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
