package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_booking_bot/internal/bot/dispatcher"
	"telegram_booking_bot/internal/bot/flow"
	"telegram_booking_bot/internal/bot/messenger"
	"telegram_booking_bot/internal/config"
	"telegram_booking_bot/internal/server"
	"telegram_booking_bot/internal/session"
	"telegram_booking_bot/internal/storage/sqlite"
	"telegram_booking_bot/pkg/logger"
)

const version = "1.0.0"

// sessionBackend - хранилище сессий вместе с функцией освобождения ресурсов
type sessionBackend struct {
	store  flow.SessionStore
	pinger server.Pinger
	close  func() error
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логгер
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Printf("Warning: %v, using info", err)
	}
	appLogger := logger.NewWithFormat(level, cfg.Log.Format)
	defer appLogger.Sync()

	appLogger.Info("Starting Telegram Booking Bot",
		logger.String("version", version),
		logger.String("mode", cfg.Telegram.Mode),
		logger.String("session_backend", cfg.Session.Backend),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Инициализируем хранилище
	storage, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		appLogger.Fatal("Failed to initialize storage", logger.Error(err))
	}
	defer func() {
		if err := storage.Close(); err != nil {
			appLogger.Error("Error closing storage", logger.Error(err))
		}
	}()
	appLogger.Info("Storage initialized", logger.String("path", cfg.Database.Path))

	sessions, err := newSessionBackend(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize session store", logger.Error(err))
	}
	defer func() {
		if err := sessions.close(); err != nil {
			appLogger.Error("Error closing session store", logger.Error(err))
		}
	}()

	// Бот создается раньше диспетчера, поэтому обработчик ссылается на него через замыкание
	var updates *dispatcher.Dispatcher
	telegramBot, err := tgbot.New(cfg.Telegram.Token,
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			updates.HandleUpdate(ctx, b, update)
		}),
	)
	if err != nil {
		appLogger.Fatal("Failed to create Telegram bot", logger.Error(err))
	}

	engine := flow.NewEngine(
		storage,
		sessions.store,
		messenger.New(telegramBot, appLogger),
		cfg.Bot,
		appLogger,
	)
	updates = dispatcher.NewDispatcher(engine, appLogger)

	health := server.NewHealthChecker(version)
	health.Register("database", storage)
	if sessions.pinger != nil {
		health.Register("sessions", sessions.pinger)
	}
	srv := server.New(cfg, appLogger, updates, telegramBot, health)

	pollingDone := make(chan struct{})
	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if err := setupWebhook(ctx, telegramBot, cfg.Telegram); err != nil {
			appLogger.Fatal("Failed to setup webhook", logger.Error(err))
		}
		appLogger.Info("Webhook configured", logger.String("url", cfg.Telegram.WebhookURL))
		close(pollingDone)
	default:
		if _, err := telegramBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
			appLogger.Warn("Failed to delete existing webhook", logger.Error(err))
		}
		go func() {
			defer close(pollingDone)
			appLogger.Info("Long polling started")
			telegramBot.Start(ctx)
			appLogger.Info("Long polling stopped")
		}()
	}

	// HTTP сервер нужен в обоих режимах ради /health и /metrics
	if err := srv.Start(ctx); err != nil {
		appLogger.Error("Server error", logger.Error(err))
		cancel()
	}

	<-pollingDone
	appLogger.Info("Shutdown complete")
}

// newSessionBackend создает хранилище сессий согласно конфигурации
func newSessionBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*sessionBackend, error) {
	if cfg.Session.Backend == config.SessionBackendRedis {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		client, err := session.NewRedisClient(connectCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		store := session.NewRedisStore(client, cfg.Session.Timeout)
		log.Info("Redis session store connected", logger.String("addr", cfg.Redis.Addr))
		return &sessionBackend{store: store, pinger: store, close: client.Close}, nil
	}

	store := session.NewMemoryStore(cfg.Session.Timeout, log)
	if err := store.Start(cfg.Session.SweepInterval); err != nil {
		return nil, err
	}
	log.Info("Memory session store started", logger.Duration("timeout", cfg.Session.Timeout))
	return &sessionBackend{store: store, close: store.Stop}, nil
}

// setupWebhook регистрирует webhook с секретом для проверки запросов
func setupWebhook(ctx context.Context, b *tgbot.Bot, cfg config.TelegramConfig) error {
	params := &tgbot.SetWebhookParams{
		URL:         cfg.WebhookURL,
		SecretToken: cfg.WebhookSecret,
	}

	if _, err := b.SetWebhook(ctx, params); err != nil {
		return err
	}
	return nil
}
