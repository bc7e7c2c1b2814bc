package health

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const defaultCheckTimeout = 2 * time.Second

// Pinger — компонент, доступность которого проверяется пингом.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker проверяет хранилище через Ping с таймаутом.
func NewPingChecker(pinger Pinger, timeout time.Duration) CheckFunc {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return pinger.Ping(ctx)
	}
}

// OutboxStatsReader отдаёт состояние backlog outbox.
type OutboxStatsReader interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// OutboxBacklogChecker помечает сервис degraded, если в outbox
// накопилось больше maxPending неотправленных событий.
type OutboxBacklogChecker struct {
	repo       OutboxStatsReader
	maxPending int
}

func NewOutboxBacklogChecker(repo OutboxStatsReader, maxPending int) *OutboxBacklogChecker {
	return &OutboxBacklogChecker{repo: repo, maxPending: maxPending}
}

func (c *OutboxBacklogChecker) Check(ctx context.Context) Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
	defer cancel()

	stats, err := c.repo.Stats(ctx)
	check := Check{Status: StatusHealthy}
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case c.maxPending > 0 && stats.PendingCount > c.maxPending:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending events, oldest since %s",
			stats.PendingCount, stats.OldestPendingAt.Format(time.RFC3339))
	}
	check.DurationMs = time.Since(start).Milliseconds()
	return check
}
