package services

import (
	"context"
	"sync"
	"time"

	"github.com/celestiaorg/geoimport/internal/logger"
	"github.com/celestiaorg/geoimport/internal/ports"
)

// Replacement cleanup defaults
const (
	DefaultCleanupInterval = time.Minute
	DefaultReplacementTTL  = 10 * time.Minute
	cleanupSweepTimeout    = 30 * time.Second
)

// CleanupConfig configures the replacement sweep
type CleanupConfig struct {
	Interval time.Duration
	// TTL is how long an uncommitted replacement upload is kept
	TTL time.Duration
	Now func() time.Time
}

// ReplacementCleanupService periodically removes replacement uploads that
// were never committed
type ReplacementCleanupService struct {
	imports  ports.ImportRepository
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	timer   *time.Timer
	// gen identifies the current Start; a tick from an earlier one does not reschedule
	gen uint64

	sweeping sync.Mutex
}

// NewReplacementCleanupService creates a stopped cleanup service
func NewReplacementCleanupService(imports ports.ImportRepository, cfg CleanupConfig) *ReplacementCleanupService {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultCleanupInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultReplacementTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ReplacementCleanupService{
		imports:  imports,
		interval: cfg.Interval,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

// Start schedules the first sweep. Calling Start on a running service does nothing.
func (s *ReplacementCleanupService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.gen++
	s.schedule(s.gen)
	logger.Infof("Replacement cleanup started, sweeping every %s", s.interval)
}

// Stop cancels the pending sweep. A sweep already in progress finishes.
func (s *ReplacementCleanupService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	logger.Info("Replacement cleanup stopped")
}

// IsRunning reports whether sweeps are scheduled
func (s *ReplacementCleanupService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Sweep deletes uncommitted replacement items older than the TTL and returns how many were removed
func (s *ReplacementCleanupService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	deleted, err := s.imports.DeleteStaleReplacements(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.InfoWithFields("removed stale replacement uploads", map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff,
		})
	}
	return deleted, nil
}

// schedule arms the next sweep of generation gen. Callers hold s.mu.
func (s *ReplacementCleanupService) schedule(gen uint64) {
	s.timer = time.AfterFunc(s.interval, func() { s.tick(gen) })
}

func (s *ReplacementCleanupService) tick(gen uint64) {
	s.sweeping.Lock()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupSweepTimeout)
	if _, err := s.Sweep(ctx); err != nil {
		logger.Errorf("Replacement cleanup sweep failed: %v", err)
	}
	cancel()
	s.sweeping.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.gen == gen {
		s.schedule(gen)
	}
}
