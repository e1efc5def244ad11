package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/model"
)

// HostSampler periodically samples CPU, memory and load of the host the
// remediation playbooks run on and keeps the most recent snapshot.
type HostSampler struct {
	logger   *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	latest   *model.HostStats
	stop     chan struct{}
	once     sync.Once
}

// NewHostSampler creates a new host sampler
func NewHostSampler(interval time.Duration, logger *zap.Logger) *HostSampler {
	return &HostSampler{
		logger:   logger.Named("host-sampler"),
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start takes a first sample and starts the sampling loop
func (s *HostSampler) Start(ctx context.Context) error {
	s.logger.Info("Starting host sampler", zap.Duration("interval", s.interval))

	if _, err := s.Sample(ctx); err != nil {
		return fmt.Errorf("failed to take initial host sample: %w", err)
	}

	go s.sampleLoop(ctx)
	return nil
}

// Stop stops the sampling loop
func (s *HostSampler) Stop() {
	s.once.Do(func() {
		s.logger.Info("Stopping host sampler")
		close(s.stop)
	})
}

func (s *HostSampler) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil {
				s.logger.Warn("Failed to sample host", zap.Error(err))
			}
		}
	}
}

// Sample collects a fresh snapshot and stores it as the latest one
func (s *HostSampler) Sample(ctx context.Context) (*model.HostStats, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}

	stats := &model.HostStats{
		MemoryUsage: memInfo.UsedPercent,
		MemoryTotal: memInfo.Total,
		CollectedAt: time.Now(),
	}
	if len(cpuPercent) > 0 {
		stats.CPUUsage = cpuPercent[0]
	}

	// Load average and host info are unavailable on some platforms
	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1 = avg.Load1
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = info.Hostname
		stats.UptimeSeconds = info.Uptime
	}

	s.mu.Lock()
	s.latest = stats
	s.mu.Unlock()

	s.logger.Debug("Host sampled",
		zap.Float64("cpu_usage", stats.CPUUsage),
		zap.Float64("memory_usage", stats.MemoryUsage),
		zap.Float64("load1", stats.Load1))

	return stats, nil
}

// Latest returns the most recent snapshot, or nil before the first sample
func (s *HostSampler) Latest() *model.HostStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil
	}
	stats := *s.latest
	return &stats
}
