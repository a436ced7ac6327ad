package service

import (
	"context"
	"time"

	"docqa-be/internal/pkg/logger"
)

const keepAlivePingTimeout = 30 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type IKeepAliveService interface {
	Run(ctx context.Context)
	PingAll(ctx context.Context) map[string]error
}

// keepAliveService pings the model backends so they keep their models loaded.
type keepAliveService struct {
	targets  map[string]Pinger
	interval time.Duration
	logger   logger.ILogger
}

func NewKeepAliveService(targets map[string]Pinger, interval time.Duration, log logger.ILogger) IKeepAliveService {
	if interval <= 0 {
		interval = 90 * time.Minute
	}
	return &keepAliveService{
		targets:  targets,
		interval: interval,
		logger:   log,
	}
}

// Run pings once immediately, then every interval until ctx ends.
func (s *keepAliveService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.PingAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PingAll(ctx)
		}
	}
}

func (s *keepAliveService) PingAll(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.targets))
	for name, target := range s.targets {
		pingCtx, cancel := context.WithTimeout(ctx, keepAlivePingTimeout)
		err := target.Ping(pingCtx)
		cancel()

		results[name] = err
		if err != nil {
			s.logger.Warn("KeepAliveService", "Backend ping failed", map[string]interface{}{
				"backend": name,
				"error":   err.Error(),
			})
			continue
		}
		s.logger.Debug("KeepAliveService", "Backend ping ok", map[string]interface{}{"backend": name})
	}
	return results
}
