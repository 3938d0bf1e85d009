package main

import (
	"runtime"
	"sync"
	"time"

	"github.com/farxc/envelopa-auditoria/internal/logger"
)

// ResourceStats are the peaks seen while a run was in progress.
type ResourceStats struct {
	PeakGoroutines int
	PeakMemoryMB   uint64
}

// ResourceMonitor samples goroutine count and heap size until stopped.
type ResourceMonitor struct {
	mu    sync.Mutex
	stats ResourceStats
	stop  chan struct{}
	done  chan struct{}
}

func NewMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (m *ResourceMonitor) Start(interval time.Duration, appLogger *logger.Logger) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sample(appLogger)
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *ResourceMonitor) sample(appLogger *logger.Logger) {
	const component = "Monitor"

	var mStats runtime.MemStats
	runtime.ReadMemStats(&mStats)

	goroutines := runtime.NumGoroutine()
	memoryMB := mStats.Alloc / 1024 / 1024

	m.mu.Lock()
	defer m.mu.Unlock()

	if goroutines > m.stats.PeakGoroutines {
		m.stats.PeakGoroutines = goroutines
	}
	if memoryMB > m.stats.PeakMemoryMB {
		m.stats.PeakMemoryMB = memoryMB
	}

	appLogger.Debug(component, "goroutines=%d memoryMB=%d peakGoroutines=%d peakMemoryMB=%d", goroutines, memoryMB, m.stats.PeakGoroutines, m.stats.PeakMemoryMB)
}

// Stop ends sampling and returns the peaks.
func (m *ResourceMonitor) Stop() ResourceStats {
	close(m.stop)
	<-m.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
