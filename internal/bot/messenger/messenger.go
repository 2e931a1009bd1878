package messenger

import (
	"context"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_booking_bot/internal/bot/flow"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/logger"
)

// Sender - часть API Telegram, которой пользуется Messenger
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Messenger отправляет сообщения через Telegram Bot API
type Messenger struct {
	bot    Sender
	logger *logger.Logger
}

var _ flow.Messenger = (*Messenger)(nil)
var _ Sender = (*bot.Bot)(nil)

// New создает Messenger
func New(b Sender, log *logger.Logger) *Messenger {
	return &Messenger{bot: b, logger: log}
}

// Send отправляет сообщение с клавиатурой и возвращает его ID
func (m *Messenger) Send(ctx context.Context, chatID int64, text string, markup keyboard.Markup) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if rm := keyboard.ToTelegram(markup); rm != nil {
		params.ReplyMarkup = rm
	}

	msg, err := m.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"method":  "sendMessage",
			"chat_id": chatID,
		})
	}
	return msg.ID, nil
}

// EditMarkup заменяет inline клавиатуру сообщения, не меняя текст
func (m *Messenger) EditMarkup(ctx context.Context, chatID int64, messageID int, grid keyboard.Inline) error {
	params := &bot.EditMessageReplyMarkupParams{
		ChatID:    chatID,
		MessageID: messageID,
	}
	if grid != nil {
		params.ReplyMarkup = keyboard.InlineMarkup(grid)
	}

	if _, err := m.bot.EditMessageReplyMarkup(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"method":     "editMessageReplyMarkup",
			"chat_id":    chatID,
			"message_id": messageID,
		})
	}
	return nil
}

// EditText заменяет текст и inline клавиатуру сообщения; nil убирает клавиатуру
func (m *Messenger) EditText(ctx context.Context, chatID int64, messageID int, text string, grid keyboard.Inline) error {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	if grid != nil {
		params.ReplyMarkup = keyboard.InlineMarkup(grid)
	}

	if _, err := m.bot.EditMessageText(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"method":     "editMessageText",
			"chat_id":    chatID,
			"message_id": messageID,
		})
	}
	return nil
}

// Notify отправляет уведомление в произвольный чат
func (m *Messenger) Notify(ctx context.Context, chatID int64, text string) error {
	if _, err := m.Send(ctx, chatID, text, nil); err != nil {
		return err
	}
	m.logger.Debug("Notification sent", logger.Int64("chat_id", chatID))
	return nil
}

// AnswerCallback отвечает на callback query, убирая индикатор загрузки
func (m *Messenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}

	if _, err := m.bot.AnswerCallbackQuery(ctx, params); err != nil {
		return errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"method":      "answerCallbackQuery",
			"callback_id": callbackID,
		})
	}
	return nil
}
