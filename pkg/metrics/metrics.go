package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики для Telegram бота
var (
	// Общие метрики
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_requests_total",
			Help: "Общее количество обработанных взаимодействий",
		},
		[]string{"handler", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_bot_request_duration_seconds",
			Help:    "Время обработки взаимодействий в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	// Метрики пользователей
	UserRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_user_registrations_total",
			Help: "Общее количество регистраций пользователей",
		},
		[]string{"role"},
	)

	// Метрики диалогов
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_flows_started_total",
			Help: "Количество начатых диалогов",
		},
		[]string{"flow"},
	)

	FlowsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_flows_finished_total",
			Help: "Количество завершенных диалогов по результату",
		},
		[]string{"flow", "outcome"}, // completed, cancelled, failed
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_bot_active_sessions",
			Help: "Количество активных сессий в памяти",
		},
	)

	ExpiredSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_bot_expired_sessions_total",
			Help: "Количество сессий, удаленных по таймауту",
		},
	)

	// Метрики записей и слотов
	AppointmentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_bot_appointments_created_total",
			Help: "Общее количество созданных записей",
		},
	)

	AppointmentsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_appointments_cancelled_total",
			Help: "Общее количество отмененных записей",
		},
		[]string{"by"}, // client, master
	)

	AvailabilitySlotsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_bot_availability_slots_created_total",
			Help: "Общее количество добавленных слотов доступности",
		},
	)

	// Метрики уведомлений
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_notifications_sent_total",
			Help: "Общее количество отправленных уведомлений",
		},
		[]string{"type", "status"},
	)

	// Метрики базы данных
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_database_operations_total",
			Help: "Общее количество операций с базой данных",
		},
		[]string{"operation", "table", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_bot_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_bot_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_bot_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_bot_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRequest записывает метрику обработки взаимодействия
func RecordRequest(handler, status string, seconds float64) {
	RequestsTotal.WithLabelValues(handler, status).Inc()
	RequestDuration.WithLabelValues(handler).Observe(seconds)
}

// RecordUserRegistration записывает метрику регистрации пользователя
func RecordUserRegistration(role string) {
	UserRegistrations.WithLabelValues(role).Inc()
}

// RecordFlowStart записывает начало диалога
func RecordFlowStart(flow string) {
	FlowsStarted.WithLabelValues(flow).Inc()
}

// RecordFlowFinish записывает завершение диалога
func RecordFlowFinish(flow, outcome string) {
	FlowsFinished.WithLabelValues(flow, outcome).Inc()
}

// RecordAppointmentCreation записывает метрику создания записи
func RecordAppointmentCreation() {
	AppointmentsCreated.Inc()
}

// RecordAppointmentCancellation записывает метрику отмены записи
func RecordAppointmentCancellation(by string) {
	AppointmentsCancelled.WithLabelValues(by).Inc()
}

// RecordAvailabilitySlots записывает метрику добавления слотов
func RecordAvailabilitySlots(count int) {
	AvailabilitySlotsCreated.Add(float64(count))
}

// RecordNotification записывает метрику отправки уведомления
func RecordNotification(notificationType, status string) {
	NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// RecordDatabaseOperation записывает метрику операции с БД
func RecordDatabaseOperation(operation, table string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperations.WithLabelValues(operation, table, status).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// SetActiveSessions устанавливает количество активных сессий
func SetActiveSessions(count int) {
	ActiveSessions.Set(float64(count))
}

// RecordExpiredSessions увеличивает счетчик просроченных сессий
func RecordExpiredSessions(count int) {
	ExpiredSessions.Add(float64(count))
}
