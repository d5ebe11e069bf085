package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultAuditInterval = 15 * time.Minute

// AuditorService periodically checks every version history for ordering
// violations. Warnings flow through VersioningService, which logs, counts and
// hands them to the store's Reconciler.
type AuditorService struct {
	versions *VersioningService
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewAuditorService(versions *VersioningService, logger *zap.Logger) *AuditorService {
	return &AuditorService{
		versions: versions,
		logger:   logger,
		interval: defaultAuditInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *AuditorService) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Start runs the audit on a periodic schedule in a background goroutine.
func (s *AuditorService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("consistency auditor started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("consistency auditor stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the auditor.
func (s *AuditorService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce performs a single audit pass and returns the number of warnings.
func (s *AuditorService) RunOnce(ctx context.Context) int {
	start := time.Now()
	warnings, err := s.versions.Audit(ctx)
	if err != nil {
		s.logger.Error("version audit failed", zap.Error(err))
		return warnings
	}
	if warnings > 0 {
		s.logger.Warn("version audit found inconsistencies",
			zap.Int("warnings", warnings),
			zap.Duration("took", time.Since(start)))
	} else {
		s.logger.Debug("version audit clean", zap.Duration("took", time.Since(start)))
	}
	return warnings
}
