package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthStatus represents current status of the portal's dependencies.
type HealthStatus struct {
	Backend   bool      `json:"backend"`
	Realtime  bool      `json:"realtime"`
	Redis     []bool    `json:"redis,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// HealthProbe names the dependencies to check. Nil fields are skipped.
type HealthProbe struct {
	Backend  func(ctx context.Context) error
	Realtime func() bool
	Redis    []*redis.Client
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// CheckHealth runs one round of checks and stores the result.
func CheckHealth(ctx context.Context, probe HealthProbe) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := HealthStatus{CheckedAt: time.Now()}
	if probe.Backend != nil {
		status.Backend = probe.Backend(ctx) == nil
	}
	if probe.Realtime != nil {
		status.Realtime = probe.Realtime()
	}
	for _, client := range probe.Redis {
		status.Redis = append(status.Redis, client.Ping(ctx).Err() == nil)
	}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks until ctx is done.
func StartHealthMonitor(ctx context.Context, probe HealthProbe, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go func() {
		CheckHealth(ctx, probe)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CheckHealth(ctx, probe)
			}
		}
	}()
}
