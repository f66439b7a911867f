package recovery

import (
	"context"
	"os"
	"runtime"
	"time"
)

// memoryWarningBytes and goroutineWarning are soft thresholds; crossing
// them degrades the component to Warning, not Unhealthy
const (
	memoryWarningBytes = 2 << 30 // 2 GiB heap in use
	goroutineWarning   = 5000
)

// RepositoryPinger is the storage-facing health probe; the partial
// repository satisfies it through a lightweight query
type RepositoryPinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck polls every component and aggregates worst-of
func (s *Service) HealthCheck(ctx context.Context) HealthReport {
	report := HealthReport{CheckedAt: s.clock.Now()}

	report.Components = append(report.Components,
		s.checkDatabase(ctx),
		checkMemory(),
		checkDisk(),
		checkProcessor(),
		s.checkNotification(),
	)

	report.Overall = StatusHealthy
	for _, component := range report.Components {
		if component.Status.severity() > report.Overall.severity() {
			report.Overall = component.Status
		}
	}
	return report
}

func (s *Service) checkDatabase(ctx context.Context) ComponentHealth {
	health := ComponentHealth{Component: "database", Status: StatusHealthy}
	if s.pinger == nil {
		health.Status = StatusUnknown
		health.Message = "no storage probe configured"
		return health
	}

	start := time.Now()
	if err := s.pinger.Ping(ctx); err != nil {
		health.Status = StatusUnhealthy
		health.Message = err.Error()
		return health
	}
	health.Metrics = map[string]interface{}{
		"ping_ms": time.Since(start).Milliseconds(),
	}
	return health
}

func checkMemory() ComponentHealth {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	health := ComponentHealth{
		Component: "memory",
		Status:    StatusHealthy,
		Metrics: map[string]interface{}{
			"heap_in_use_bytes": stats.HeapInuse,
			"heap_objects":      stats.HeapObjects,
			"num_gc":            stats.NumGC,
		},
	}
	if stats.HeapInuse > memoryWarningBytes {
		health.Status = StatusWarning
		health.Message = "heap usage above threshold"
	}
	return health
}

func checkDisk() ComponentHealth {
	health := ComponentHealth{Component: "disk", Status: StatusHealthy}

	// A writable temp dir is what the pipeline actually needs
	file, err := os.CreateTemp("", "summaryhub-health-*")
	if err != nil {
		health.Status = StatusUnhealthy
		health.Message = err.Error()
		return health
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)

	health.Metrics = map[string]interface{}{
		"temp_dir": os.TempDir(),
	}
	return health
}

func checkProcessor() ComponentHealth {
	goroutines := runtime.NumGoroutine()
	health := ComponentHealth{
		Component: "processor",
		Status:    StatusHealthy,
		Metrics: map[string]interface{}{
			"goroutines": goroutines,
			"num_cpu":    runtime.NumCPU(),
		},
	}
	if goroutines > goroutineWarning {
		health.Status = StatusWarning
		health.Message = "goroutine count above threshold"
	}
	return health
}

func (s *Service) checkNotification() ComponentHealth {
	health := ComponentHealth{Component: "notification", Status: StatusHealthy}
	if s.sink == nil {
		health.Status = StatusUnhealthy
		health.Message = "no notification sink configured"
	}
	return health
}
