package api

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const idleCheckInterval = 30 * time.Second

// IdleManager periodically resets an abandoned session and releases the
// camera so the booth is ready for the next guest.
type IdleManager struct {
	booth   *Booth
	timeout time.Duration
	now     func() time.Time
}

func NewIdleManager(booth *Booth, timeout time.Duration) (*IdleManager, error) {
	if booth == nil {
		return nil, errors.New("no booth provided for idle manager")
	}
	if timeout <= 0 {
		return nil, errors.New("idle timeout must be positive")
	}
	return &IdleManager{
		booth:   booth,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

func (m *IdleManager) checkIdle() {
	if m.booth.ResetIfIdle(m.now(), m.timeout) {
		slog.Info("idle session reset", "timeout", m.timeout)
	}
}

func (m *IdleManager) Run(ctx context.Context) {
	ticker := time.NewTicker(min(idleCheckInterval, m.timeout))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkIdle()
		}
	}
}
