// Package flow реализует диалоги бота: запись клиента, удаление записей
// мастером и добавление слотов доступности.
package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/config"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// Messenger отправляет сообщения пользователям
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, markup keyboard.Markup) (int, error)
	EditMarkup(ctx context.Context, chatID int64, messageID int, grid keyboard.Inline) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, grid keyboard.Inline) error
	Notify(ctx context.Context, chatID int64, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// SessionStore хранит текущее состояние диалога пользователя.
// Load возвращает nil без ошибки, если сессии нет или она истекла.
type SessionStore interface {
	Load(ctx context.Context, userID int64) (State, error)
	Save(ctx context.Context, userID int64, state State) error
	Clear(ctx context.Context, userID int64) error
}

// Command - команда вида /name args
type Command struct {
	ChatID int64
	UserID int64
	Name   string
	Args   []string
}

// Message - текстовое сообщение или нажатие кнопки меню
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// Callback - нажатие inline кнопки
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	MessageID int
	Data      string
}

// Engine обрабатывает события пользователей
type Engine struct {
	store     storage.Repository
	sessions  SessionStore
	messenger Messenger
	config    config.BotConfig
	logger    *logger.Logger
	now       func() time.Time
	locks     *userLocks
}

// Option настраивает Engine
type Option func(*Engine)

// WithClock задает источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine создает движок диалогов
func NewEngine(
	store storage.Repository,
	sessions SessionStore,
	messenger Messenger,
	cfg config.BotConfig,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:     store,
		sessions:  sessions,
		messenger: messenger,
		config:    cfg,
		logger:    log.WithFields(logger.String("component", "flow")),
		now:       time.Now,
		locks:     newUserLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleCommand обрабатывает команду
func (e *Engine) HandleCommand(ctx context.Context, cmd Command) {
	defer e.locks.lock(cmd.UserID)()
	defer e.observe("command")()

	switch strings.ToLower(cmd.Name) {
	case "start":
		e.start(ctx, cmd.ChatID, cmd.UserID)
	case "id":
		e.showID(ctx, cmd.ChatID, cmd.UserID)
	case "addmaster":
		e.addMaster(ctx, cmd)
	case "mybooking":
		e.myBooking(ctx, cmd.ChatID, cmd.UserID)
	case "cancelbooking":
		e.cancelBooking(ctx, cmd.ChatID, cmd.UserID)
	default:
		e.send(ctx, cmd.ChatID, textUnknownCommand, nil)
	}
}

// HandleMessage обрабатывает текст: кнопки меню или ввод внутри диалога
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	defer e.locks.lock(msg.UserID)()
	defer e.observe("message")()

	// Кнопки меню сравниваются без пробелов по краям, ввод внутри диалога принимается как есть
	switch strings.TrimSpace(msg.Text) {
	case keyboard.ButtonBack:
		e.backToMenu(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonBook:
		e.startBooking(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonMyBooking:
		e.myBooking(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonCancel:
		e.cancelBooking(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonContacts:
		e.contacts(ctx, msg.ChatID)
		return
	case keyboard.ButtonMySlots:
		e.viewAvailability(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonAddSlots:
		e.startAvailability(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonDeleteAppt:
		e.startDeletion(ctx, msg.ChatID, msg.UserID)
		return
	case keyboard.ButtonAllBookings:
		e.allAppointments(ctx, msg.ChatID, msg.UserID)
		return
	}

	state, ok := e.loadSession(ctx, msg.ChatID, msg.UserID)
	if !ok {
		return
	}

	switch st := state.(type) {
	case nil:
		e.send(ctx, msg.ChatID, textPressStart, nil)
	case BookingEnterName:
		e.bookingEnterName(ctx, msg, st, msg.Text)
	case BookingEnterPhone:
		e.bookingEnterPhone(ctx, msg, st, msg.Text)
	case AvailabilityEnterSlots:
		e.availabilityEnterSlots(ctx, msg, st, msg.Text)
	default:
		e.send(ctx, msg.ChatID, textUseButtons, nil)
	}
}

// HandleCallback обрабатывает нажатие inline кнопки. На каждый callback
// отправляется ровно один ответ.
func (e *Engine) HandleCallback(ctx context.Context, cb Callback) {
	defer e.locks.lock(cb.UserID)()
	defer e.observe("callback")()

	notice := ""
	defer func() {
		if err := e.messenger.AnswerCallback(ctx, cb.ID, notice); err != nil {
			e.logger.Warn("Failed to answer callback query",
				logger.String("callback_id", cb.ID),
				logger.Error(err),
			)
		}
	}()

	act, err := action.Decode(cb.Data)
	if err != nil {
		e.logger.Warn("Invalid callback data",
			logger.Int64("user_id", cb.UserID),
			logger.String("data", cb.Data),
			logger.Error(err),
		)
		metrics.RecordError("flow", "invalid_callback")
		notice = textInvalidChoice
		return
	}

	switch a := act.(type) {
	case action.Noop:
		return
	case action.ConfirmCancel:
		notice = e.confirmCancel(ctx, cb, a.AppointmentID)
		return
	}

	// Об ошибке загрузки пользователь уже получил сообщение
	state, ok := e.loadSession(ctx, cb.ChatID, cb.UserID)
	if !ok {
		return
	}

	if p, ok := state.(prompted); ok && p.promptID() != 0 && p.promptID() != cb.MessageID {
		e.logger.Debug("Stale keyboard pressed",
			logger.Int64("user_id", cb.UserID),
			logger.Int("message_id", cb.MessageID),
			logger.Int("prompt_id", p.promptID()),
			logger.String("flow", state.Flow()),
		)
		metrics.RecordError("flow", "stale_keyboard")
		notice = textStaleKeyboard
		return
	}

	switch st := state.(type) {
	case nil:
		if _, back := act.(action.Back); back {
			e.editText(ctx, cb, textCancelled, nil)
			return
		}
		notice = textSessionExpired
		e.editText(ctx, cb, textSessionExpired, nil)
	case BookingSelectMaster:
		notice = e.bookingSelectMaster(ctx, cb, st, act)
	case BookingSelectDate:
		notice = e.bookingSelectDate(ctx, cb, st, act)
	case BookingSelectTime:
		notice = e.bookingSelectTime(ctx, cb, st, act)
	case DeletionSelectDate:
		notice = e.deletionSelectDate(ctx, cb, st, act)
	case DeletionSelectAppointment:
		notice = e.deletionSelectAppointment(ctx, cb, st, act)
	case AvailabilitySelectDate:
		notice = e.availabilitySelectDate(ctx, cb, st, act)
	default:
		// Состояния, ожидающие текст, кнопками не управляются
		if _, back := act.(action.Back); back {
			e.abort(ctx, cb, state)
			return
		}
		notice = textInvalidChoice
	}
}

// abort завершает диалог по кнопке "Назад"
func (e *Engine) abort(ctx context.Context, cb Callback, state State) {
	e.clearSession(ctx, cb.UserID)
	metrics.RecordFlowFinish(state.Flow(), "cancelled")
	e.editText(ctx, cb, textCancelled, nil)
}

// backToMenu обрабатывает текстовую кнопку "Назад" из любого состояния
func (e *Engine) backToMenu(ctx context.Context, chatID, userID int64) {
	if state, err := e.sessions.Load(ctx, userID); err == nil && state != nil {
		metrics.RecordFlowFinish(state.Flow(), "cancelled")
	}
	e.clearSession(ctx, userID)

	master, err := e.masterByUser(ctx, userID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return
	}
	if master != nil {
		e.send(ctx, chatID, textBackToMaster, keyboard.MasterMenu())
		return
	}
	e.send(ctx, chatID, textBackToMain, keyboard.MainMenu())
}

// today возвращает текущую дату в формате YYYY-MM-DD
func (e *Engine) today() string {
	return e.now().Format(models.DateLayout)
}

// masterByUser возвращает мастера пользователя или nil, если пользователь не мастер
func (e *Engine) masterByUser(ctx context.Context, userID int64) (*models.Master, error) {
	master, err := e.store.GetMasterByTgID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrMasterNotFound) {
			return nil, nil
		}
		e.logger.Error("Failed to get master by user",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		return nil, err
	}
	return master, nil
}

// requireMaster возвращает мастера или сообщает пользователю об отсутствии прав
func (e *Engine) requireMaster(ctx context.Context, chatID, userID int64) (*models.Master, bool) {
	master, err := e.masterByUser(ctx, userID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return nil, false
	}
	if master == nil {
		e.logger.Info("Master action rejected",
			logger.Int64("user_id", userID),
			logger.Error(errors.ErrNotAMaster),
		)
		e.send(ctx, chatID, textMastersOnly, nil)
		return nil, false
	}
	return master, true
}

func (e *Engine) loadSession(ctx context.Context, chatID, userID int64) (State, bool) {
	state, err := e.sessions.Load(ctx, userID)
	if err != nil {
		e.logger.Error("Failed to load session",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		metrics.RecordError("session", "load")
		e.send(ctx, chatID, textGenericError, nil)
		return nil, false
	}
	return state, true
}

func (e *Engine) saveSession(ctx context.Context, userID int64, state State) {
	if err := e.sessions.Save(ctx, userID, state); err != nil {
		e.logger.Error("Failed to save session",
			logger.Int64("user_id", userID),
			logger.String("flow", state.Flow()),
			logger.Error(err),
		)
		metrics.RecordError("session", "save")
	}
}

func (e *Engine) clearSession(ctx context.Context, userID int64) {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		e.logger.Error("Failed to clear session",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		metrics.RecordError("session", "clear")
	}
}

func (e *Engine) send(ctx context.Context, chatID int64, text string, markup keyboard.Markup) {
	e.sendPrompt(ctx, chatID, text, markup)
}

// sendPrompt отправляет сообщение и возвращает его идентификатор; 0 при ошибке
func (e *Engine) sendPrompt(ctx context.Context, chatID int64, text string, markup keyboard.Markup) int {
	id, err := e.messenger.Send(ctx, chatID, text, markup)
	if err != nil {
		e.logger.Error("Failed to send message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
		metrics.RecordError("messenger", "send")
		return 0
	}
	return id
}

func (e *Engine) editText(ctx context.Context, cb Callback, text string, grid keyboard.Inline) {
	if err := e.messenger.EditText(ctx, cb.ChatID, cb.MessageID, text, grid); err != nil {
		e.logger.Warn("Failed to edit message",
			logger.Int64("chat_id", cb.ChatID),
			logger.Int("message_id", cb.MessageID),
			logger.Error(err),
		)
		metrics.RecordError("messenger", "edit_text")
	}
}

func (e *Engine) editMarkup(ctx context.Context, cb Callback, grid keyboard.Inline) {
	if err := e.messenger.EditMarkup(ctx, cb.ChatID, cb.MessageID, grid); err != nil {
		e.logger.Warn("Failed to edit keyboard",
			logger.Int64("chat_id", cb.ChatID),
			logger.Int("message_id", cb.MessageID),
			logger.Error(err),
		)
		metrics.RecordError("messenger", "edit_markup")
	}
}

// notify отправляет уведомление другому пользователю; ошибки только логируются
func (e *Engine) notify(ctx context.Context, chatID int64, kind, text string) {
	if err := e.messenger.Notify(ctx, chatID, text); err != nil {
		e.logger.Warn("Failed to send notification",
			logger.Int64("chat_id", chatID),
			logger.String("type", kind),
			logger.Error(err),
		)
		metrics.RecordNotification(kind, "error")
		return
	}
	metrics.RecordNotification(kind, "success")
}

func (e *Engine) observe(handler string) func() {
	start := time.Now()
	return func() {
		metrics.RecordRequest(handler, "done", time.Since(start).Seconds())
	}
}

// userLocks сериализует обработку событий одного пользователя
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

// lock захватывает блокировку пользователя и возвращает функцию освобождения
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
