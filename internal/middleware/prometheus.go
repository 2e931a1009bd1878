// Package middleware содержит HTTP middleware webhook сервера.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"telegram_booking_bot/pkg/metrics"
)

// PrometheusMiddleware добавляет метрики Prometheus для HTTP запросов.
// routes - известные пути; остальные учитываются как "other".
func PrometheusMiddleware(routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			endpoint := r.URL.Path
			if _, ok := known[endpoint]; !ok {
				endpoint = "other"
			}

			metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(wrapped.Status))
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		})
	}
}

// StatusRecorder оборачивает http.ResponseWriter для захвата статус-кода
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// WriteHeader захватывает статус-код ответа
func (rw *StatusRecorder) WriteHeader(code int) {
	rw.Status = code
	rw.ResponseWriter.WriteHeader(code)
}
