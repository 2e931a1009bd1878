package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/config"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/internal/testutils"
)

type sentMessage struct {
	ChatID int64
	Text   string
	Markup keyboard.Markup
}

type editedMessage struct {
	ChatID     int64
	MessageID  int
	Text       string
	Grid       keyboard.Inline
	MarkupOnly bool
}

// fakeMessenger запоминает все исходящие сообщения
type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	edits     []editedMessage
	notified  []sentMessage
	answers   []string
	notifyErr error
	nextID    int
	// prompts - последнее сообщение с inline клавиатурой в каждом чате
	prompts map[int64]int
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, text string, markup keyboard.Markup) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	if _, ok := markup.(keyboard.Inline); ok {
		if m.prompts == nil {
			m.prompts = make(map[int64]int)
		}
		m.prompts[chatID] = m.nextID
	}
	return m.nextID, nil
}

func (m *fakeMessenger) EditMarkup(_ context.Context, chatID int64, messageID int, grid keyboard.Inline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editedMessage{ChatID: chatID, MessageID: messageID, Grid: grid, MarkupOnly: true})
	return nil
}

func (m *fakeMessenger) EditText(_ context.Context, chatID int64, messageID int, text string, grid keyboard.Inline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text, Grid: grid})
	return nil
}

func (m *fakeMessenger) Notify(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.notified = append(m.notified, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, text)
	return nil
}

func (m *fakeMessenger) lastSent(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("Expected a sent message")
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMessenger) prompt(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[chatID]
}

func (m *fakeMessenger) lastEdit(t *testing.T) editedMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		t.Fatal("Expected an edited message")
	}
	return m.edits[len(m.edits)-1]
}

func (m *fakeMessenger) lastAnswer(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.answers) == 0 {
		t.Fatal("Expected a callback answer")
	}
	return m.answers[len(m.answers)-1]
}

// fakeSessions хранит состояния в map
type fakeSessions struct {
	mu     sync.Mutex
	states map[int64]State
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{states: make(map[int64]State)}
}

func (s *fakeSessions) Load(_ context.Context, userID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID], nil
}

func (s *fakeSessions) Save(_ context.Context, userID int64, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state
	return nil
}

func (s *fakeSessions) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *fakeSessions) get(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

// brokenSessions имитирует недоступное хранилище сессий
type brokenSessions struct {
	*fakeSessions
	loadErr error
}

func (s *brokenSessions) Load(context.Context, int64) (State, error) {
	return nil, s.loadErr
}

// legacyRepository подмешивает записи без времени, которые больше нельзя создать через хранилище
type legacyRepository struct {
	storage.Repository
	legacy []*models.Appointment
}

func (r *legacyRepository) ListAppointments(ctx context.Context, filter storage.AppointmentFilter) ([]*models.Appointment, error) {
	appts, err := r.Repository.ListAppointments(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, a := range r.legacy {
		if filter.MasterID != 0 && a.MasterID != filter.MasterID {
			continue
		}
		if filter.Date != "" && a.Date != filter.Date {
			continue
		}
		appts = append(appts, a)
	}
	return appts, nil
}

const (
	adminID      = int64(900)
	masterTgID   = int64(500)
	clientID     = int64(100)
	otherClient  = int64(101)
	bookingDate  = "2024-06-10"
	bookingTime  = "14:00"
	contactsText = "Салон на Ленина, 1"
)

type testEnv struct {
	t        *testing.T
	engine   *Engine
	repo     storage.Repository
	store    storage.Storage
	msg      *fakeMessenger
	sessions *fakeSessions
	master   *models.Master
	clicks   int
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
}

// newTestEnv создает движок с мастером Anna и слотом 14:00 на 2024-06-10
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutils.SetupTestDB(t)
	return newTestEnvWithRepo(t, db, db)
}

func newTestEnvWithRepo(t *testing.T, db storage.Storage, repo storage.Repository) *testEnv {
	t.Helper()
	ctx := testutils.TestContext()

	_, err := db.SaveUser(ctx, masterTgID, models.RoleMaster)
	testutils.AssertNoError(t, err, "save master user")
	master, err := db.CreateMaster(ctx, masterTgID, "Anna")
	testutils.AssertNoError(t, err, "create master")
	testutils.AssertNoError(t, db.CreateAvailability(ctx, &models.Availability{
		MasterID: master.ID, Date: bookingDate, Time: bookingTime,
	}), "create availability")

	msg := &fakeMessenger{}
	sessions := newFakeSessions()
	cfg := config.BotConfig{AdminIDs: []int64{adminID}, ContactsText: contactsText}

	return &testEnv{
		t:        t,
		engine:   NewEngine(repo, sessions, msg, cfg, testutils.SetupTestLogger(), WithClock(fixedNow)),
		repo:     repo,
		store:    db,
		msg:      msg,
		sessions: sessions,
		master:   master,
	}
}

func (env *testEnv) command(userID int64, name string, args ...string) {
	env.engine.HandleCommand(testutils.TestContext(), Command{ChatID: userID, UserID: userID, Name: name, Args: args})
}

func (env *testEnv) text(userID int64, text string) {
	env.engine.HandleMessage(testutils.TestContext(), Message{ChatID: userID, UserID: userID, Text: text})
}

func (env *testEnv) click(userID int64, a action.Action) {
	env.clickData(userID, action.Encode(a))
}

// clickData нажимает кнопку последнего сообщения с inline клавиатурой в чате пользователя
func (env *testEnv) clickData(userID int64, data string) {
	env.clickOn(userID, env.msg.prompt(userID), data)
}

func (env *testEnv) clickOn(userID int64, messageID int, data string) {
	env.clicks++
	env.engine.HandleCallback(testutils.TestContext(), Callback{
		ID:        fmt.Sprintf("cb-%d", env.clicks),
		ChatID:    userID,
		UserID:    userID,
		MessageID: messageID,
		Data:      data,
	})
}

func (env *testEnv) appointments() []*models.Appointment {
	env.t.Helper()
	appts, err := env.store.ListAppointments(testutils.TestContext(), storage.AppointmentFilter{MasterID: env.master.ID})
	testutils.AssertNoError(env.t, err, "list appointments")
	return appts
}

func (env *testEnv) book(userID int64, name, phone, date, slot string) *models.Appointment {
	env.t.Helper()
	appt := &models.Appointment{
		MasterID: env.master.ID, UserID: userID, ClientName: name, ClientPhone: phone, Date: date, Time: &slot,
	}
	testutils.AssertNoError(env.t, env.store.CreateAppointment(testutils.TestContext(), appt), "create appointment")
	return appt
}

// actionable возвращает действия всех активных кнопок сетки, кроме "Назад"
func actionable(grid keyboard.Inline) []action.Action {
	var out []action.Action
	for _, row := range grid {
		for _, b := range row {
			if _, back := b.Action.(action.Back); back || !b.Actionable() {
				continue
			}
			out = append(out, b.Action)
		}
	}
	return out
}

// dayButton ищет кнопку дня по числу; зачеркнутые дни тоже находятся
func dayButton(grid keyboard.Inline, day int) (keyboard.Button, bool) {
	want := fmt.Sprint(day)
	for _, row := range grid[2 : len(grid)-1] {
		for _, b := range row {
			if strings.Trim(b.Text, "~") == want {
				return b, true
			}
		}
	}
	return keyboard.Button{}, false
}
