// Package dispatcher переводит обновления Telegram в события диалогов.
package dispatcher

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"telegram_booking_bot/internal/bot/flow"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// Handler принимает события диалогов
type Handler interface {
	HandleCommand(ctx context.Context, cmd flow.Command)
	HandleMessage(ctx context.Context, msg flow.Message)
	HandleCallback(ctx context.Context, cb flow.Callback)
}

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	handler Handler
	logger  *logger.Logger
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(handler Handler, log *logger.Logger) *Dispatcher {
	return &Dispatcher{handler: handler, logger: log}
}

// HandleUpdate обрабатывает входящее обновление от Telegram.
// Сигнатура совпадает с bot.HandlerFunc.
func (d *Dispatcher) HandleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	default:
		d.logger.Debug("Unsupported update type", logger.Int64("update_id", update.ID))
		metrics.RecordError("dispatcher", "unsupported_update")
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *models.Message) {
	if msg.Text == "" {
		d.logger.Debug("Ignoring non-text message", logger.Int64("chat_id", msg.Chat.ID))
		return
	}

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	} else {
		userID = msg.Chat.ID
	}

	d.logger.Debug("Received message",
		logger.Int64("chat_id", msg.Chat.ID),
		logger.Int64("user_id", userID),
	)

	if name, args, ok := ParseCommand(msg.Text); ok {
		d.handler.HandleCommand(ctx, flow.Command{
			ChatID: msg.Chat.ID,
			UserID: userID,
			Name:   name,
			Args:   args,
		})
		return
	}

	d.handler.HandleMessage(ctx, flow.Message{
		ChatID: msg.Chat.ID,
		UserID: userID,
		Text:   msg.Text,
	})
}

func (d *Dispatcher) handleCallback(ctx context.Context, q *models.CallbackQuery) {
	cb := flow.Callback{
		ID:     q.ID,
		UserID: q.From.ID,
		ChatID: q.From.ID,
		Data:   q.Data,
	}

	switch {
	case q.Message.Message != nil:
		cb.ChatID = q.Message.Message.Chat.ID
		cb.MessageID = q.Message.Message.ID
	case q.Message.InaccessibleMessage != nil:
		cb.ChatID = q.Message.InaccessibleMessage.Chat.ID
		cb.MessageID = q.Message.InaccessibleMessage.MessageID
	}

	d.logger.Debug("Received callback query",
		logger.Int64("chat_id", cb.ChatID),
		logger.String("data", cb.Data),
	)

	d.handler.HandleCallback(ctx, cb)
}

// ParseCommand разбирает текст вида "/name@bot arg1 arg2".
// Возвращает false, если текст не является командой.
func ParseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}

	return strings.ToLower(name), fields[1:], true
}
