package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"telegram_booking_bot/pkg/metrics"
)

// Pinger - зависимость, состояние которой проверяется в /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	deps      map[string]Pinger
	startTime time.Time
	version   string
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		deps:      make(map[string]Pinger),
		startTime: time.Now(),
		version:   version,
	}
}

// Register добавляет зависимость под именем name
func (h *HealthChecker) Register(name string, p Pinger) {
	h.deps[name] = p
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps)+1)
	status := "healthy"

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = "unhealthy"
			metrics.RecordError("health", name)
		} else {
			checks[name] = "healthy"
		}
	}

	checks["goroutines"] = h.checkRuntime()

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// checkRuntime обновляет метрики памяти и горутин
func (h *HealthChecker) checkRuntime() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.MemoryUsage.Set(float64(m.Alloc))

	count := runtime.NumGoroutine()
	metrics.GoroutinesCount.Set(float64(count))

	if count > 1000 {
		return "warning: high goroutine count"
	}
	return "healthy"
}
