package detector

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// optimizer is implemented by stores that can compact themselves.
type optimizer interface {
	Optimize(ctx context.Context) error
}

// startMaintenance purges readings older than the configured retention on every tick.
func (m *Module) startMaintenance() {
	if m.store == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.MaintenanceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.runMaintenance()
			}
		}
	}()
}

func (m *Module) runMaintenance() {
	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-m.cfg.HistoryRetention)
	deleted, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Warn("failed to purge old readings", zap.Error(err))
		return
	}
	if deleted == 0 {
		return
	}
	m.logger.Info("purged old readings", zap.Int64("count", deleted), zap.Time("cutoff", cutoff))
	if o, ok := m.db.(optimizer); ok {
		if err := o.Optimize(ctx); err != nil {
			m.logger.Warn("failed to optimize database after purge", zap.Error(err))
		}
	}
}
