// Package server реализует HTTP сервер для режима webhook.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telegram_booking_bot/internal/config"
	"telegram_booking_bot/internal/middleware"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// Маршруты сервера
const (
	RouteWebhook = "/webhook"
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)

// SecretTokenHeader - заголовок, в котором Telegram передает секрет webhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// UpdateHandler обрабатывает обновления Telegram
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, bot *tgbot.Bot, update *tgmodels.Update)
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	logger      *logger.Logger
	rateLimiter *middleware.RateLimiter
	health      *HealthChecker
	handler     UpdateHandler
	telegramBot *tgbot.Bot
}

// New создает новый HTTP сервер
func New(cfg *config.Config, log *logger.Logger, handler UpdateHandler, telegramBot *tgbot.Bot, health *HealthChecker) *Server {
	s := &Server{
		config:      cfg,
		logger:      log,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, log),
		health:      health,
		handler:     handler,
		telegramBot: telegramBot,
	}

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.Handler(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Handler возвращает маршрутизатор с примененными middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(RouteHealth, s.health.HealthHandler)
	mux.Handle(RouteMetrics, promhttp.Handler())
	mux.Handle(RouteWebhook, middleware.HTTPRateLimitMiddleware(s.rateLimiter)(http.HandlerFunc(s.handleWebhook)))

	// Применяем middleware в обратном порядке (последний применяется первым)
	var h http.Handler = mux
	h = middleware.PrometheusMiddleware(RouteWebhook, RouteHealth, RouteMetrics)(h)
	h = s.loggingMiddleware(h)
	h = s.requestIDMiddleware(h)
	h = s.securityHeadersMiddleware(h)
	return h
}

// handleWebhook обрабатывает Telegram webhook
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.verifySecret(r) {
		s.logger.Warn("Invalid webhook secret token",
			logger.String("request_id", RequestID(r.Context())),
			logger.String("remote_addr", middleware.ClientIP(r)),
		)
		metrics.RecordError("webhook", "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var update tgmodels.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		s.logger.Warn("Failed to decode Telegram update",
			logger.String("request_id", RequestID(r.Context())),
			logger.Error(err),
		)
		metrics.RecordError("webhook", "decode")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	s.handler.HandleUpdate(ctx, s.telegramBot, &update)

	s.logger.Debug("Webhook processed",
		logger.String("request_id", RequestID(r.Context())),
		logger.Int64("update_id", update.ID),
		logger.Duration("duration", time.Since(start)),
	)

	w.WriteHeader(http.StatusOK)
}

// verifySecret сравнивает секрет из заголовка с настроенным; пустой секрет отключает проверку
func (s *Server) verifySecret(r *http.Request) bool {
	secret := s.config.Telegram.WebhookSecret
	if secret == "" {
		return true
	}
	got := r.Header.Get(SecretTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// Start запускает сервер и блокируется до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", logger.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Close()
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.rateLimiter.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
