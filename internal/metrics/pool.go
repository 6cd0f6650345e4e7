// Package metrics provides Prometheus metrics for process pools.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolLaunched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "processes_launched_total",
		Help:      "Processes admitted and started",
	}, []string{"pool"})

	poolCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "processes_completed_total",
		Help:      "Processes reaped with a result",
	}, []string{"pool"})

	poolRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "processes_running",
		Help:      "Processes currently running",
	}, []string{"pool"})

	poolTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "timeouts_total",
		Help:      "Wait calls that exceeded their deadline",
	}, []string{"pool"})

	poolLaunchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "launch_failures_total",
		Help:      "Processes that could not be started",
	}, []string{"pool"})

	poolAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "processes_abandoned_total",
		Help:      "Running processes killed at pool close",
	}, []string{"pool"})

	poolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "multirunner",
		Subsystem: "pool",
		Name:      "process_duration_seconds",
		Help:      "Wall time from launch to reap",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"pool"})

	// Local cache for summaries printed by the CLI.
	poolCache   = make(map[string]*PoolStats)
	poolCacheMu sync.RWMutex
)

// PoolStats holds current counter values for a pool.
type PoolStats struct {
	Launched       int
	Completed      int
	Running        int
	Timeouts       int
	LaunchFailures int
	Abandoned      int
}

// ProcessLaunched records an admitted process.
func ProcessLaunched(pool string) {
	poolLaunched.WithLabelValues(pool).Inc()
	poolRunning.WithLabelValues(pool).Inc()
	updateCache(pool, func(s *PoolStats) {
		s.Launched++
		s.Running++
	})
}

// ProcessDetached records a process launched without supervision.
func ProcessDetached(pool string) {
	poolLaunched.WithLabelValues(pool).Inc()
	updateCache(pool, func(s *PoolStats) { s.Launched++ })
}

// ProcessCompleted records a reaped process and its wall time.
func ProcessCompleted(pool string, elapsed time.Duration) {
	poolCompleted.WithLabelValues(pool).Inc()
	poolRunning.WithLabelValues(pool).Dec()
	poolDuration.WithLabelValues(pool).Observe(elapsed.Seconds())
	updateCache(pool, func(s *PoolStats) {
		s.Completed++
		s.Running--
	})
}

// ProcessAbandoned records a process killed at pool close.
func ProcessAbandoned(pool string) {
	poolAbandoned.WithLabelValues(pool).Inc()
	poolRunning.WithLabelValues(pool).Dec()
	updateCache(pool, func(s *PoolStats) {
		s.Abandoned++
		s.Running--
	})
}

// LaunchFailed records a process that could not be started.
func LaunchFailed(pool string) {
	poolLaunchFailures.WithLabelValues(pool).Inc()
	updateCache(pool, func(s *PoolStats) { s.LaunchFailures++ })
}

// TimedOut records a wait call that ran past its deadline.
func TimedOut(pool string) {
	poolTimeouts.WithLabelValues(pool).Inc()
	updateCache(pool, func(s *PoolStats) { s.Timeouts++ })
}

// DeletePoolMetrics removes all metrics for a pool.
func DeletePoolMetrics(pool string) {
	poolLaunched.DeleteLabelValues(pool)
	poolCompleted.DeleteLabelValues(pool)
	poolRunning.DeleteLabelValues(pool)
	poolTimeouts.DeleteLabelValues(pool)
	poolLaunchFailures.DeleteLabelValues(pool)
	poolAbandoned.DeleteLabelValues(pool)
	poolDuration.DeleteLabelValues(pool)

	poolCacheMu.Lock()
	delete(poolCache, pool)
	poolCacheMu.Unlock()
}

// GetPoolStats returns current values for a pool, or nil if nothing was recorded.
func GetPoolStats(pool string) *PoolStats {
	poolCacheMu.RLock()
	defer poolCacheMu.RUnlock()
	if s, ok := poolCache[pool]; ok {
		dup := *s
		return &dup
	}
	return nil
}

func updateCache(pool string, update func(*PoolStats)) {
	poolCacheMu.Lock()
	defer poolCacheMu.Unlock()
	s, ok := poolCache[pool]
	if !ok {
		s = &PoolStats{}
		poolCache[pool] = s
	}
	update(s)
}
