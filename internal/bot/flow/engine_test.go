package flow

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/internal/testutils"
	"telegram_booking_bot/internal/validation"
)

var june10 = action.Day(2024, time.June, 10)

func TestBooking_EndToEnd(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, textSelectMaster, sent.Text, "master prompt")
	grid, ok := sent.Markup.(keyboard.Inline)
	testutils.AssertTrue(t, ok, "masters keyboard is inline")
	testutils.AssertEqual(t, []action.Action{action.PickMaster{MasterID: env.master.ID}}, actionable(grid), "master options")
	testutils.AssertEqual(t, BookingSelectMaster{Prompt: env.msg.prompt(clientID)}, env.sessions.get(clientID), "state after start")

	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	edit := env.msg.lastEdit(t)
	testutils.AssertEqual(t, textSelectDate, edit.Text, "date prompt")
	day10, _ := dayButton(edit.Grid, 10)
	testutils.AssertEqual(t, action.Action(june10), day10.Action, "day with free slot is pickable")
	day11, _ := dayButton(edit.Grid, 11)
	testutils.AssertFalse(t, day11.Actionable(), "day without slots is not pickable")

	env.click(clientID, june10)
	edit = env.msg.lastEdit(t)
	testutils.AssertEqual(t, textSelectTime, edit.Text, "time prompt")
	testutils.AssertEqual(t, []action.Action{action.PickTime{Time: bookingTime}}, actionable(edit.Grid), "free times")

	env.click(clientID, action.PickTime{Time: bookingTime})
	testutils.AssertEqual(t, textEnterName, env.msg.lastEdit(t).Text, "name prompt")

	env.text(clientID, "Ivan")
	testutils.AssertEqual(t, textEnterPhone, env.msg.lastSent(t).Text, "phone prompt")
	testutils.AssertEqual(t, BookingEnterPhone{
		MasterID: env.master.ID, Date: bookingDate, Time: bookingTime, Name: "Ivan",
	}, env.sessions.get(clientID), "state before phone")

	env.text(clientID, "+1000")

	appts := env.appointments()
	if len(appts) != 1 {
		t.Fatalf("Expected exactly one appointment, got %d", len(appts))
	}
	a := appts[0]
	testutils.AssertEqual(t, env.master.ID, a.MasterID, "master id")
	testutils.AssertEqual(t, clientID, a.UserID, "user id")
	testutils.AssertEqual(t, "Ivan", a.ClientName, "client name")
	testutils.AssertEqual(t, "+1000", a.ClientPhone, "client phone")
	testutils.AssertEqual(t, bookingDate, a.Date, "date")
	testutils.AssertEqual(t, bookingTime, a.GetFormattedTime(), "time")

	parsed, err := time.Parse(models.TimeLayout, *a.Time)
	testutils.AssertNoError(t, err, "parse stored time")
	testutils.AssertTrue(t, parsed.Hour() == 14 && parsed.Minute() == 0, "time is 14:00")

	saved := env.msg.lastSent(t)
	testutils.AssertTrue(t, strings.HasPrefix(saved.Text, "Ваша запись сохранена!"), "confirmation text")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.MainMenu()), saved.Markup, "main menu after booking")

	if len(env.msg.notified) != 1 {
		t.Fatalf("Expected master notification, got %d", len(env.msg.notified))
	}
	note := env.msg.notified[0]
	testutils.AssertEqual(t, masterTgID, note.ChatID, "notification goes to master")
	testutils.AssertEqual(t, "Новая запись:\nIvan, +1000\n2024-06-10 в 14:00", note.Text, "notification text")

	testutils.AssertEqual(t, nil, env.sessions.get(clientID), "session cleared")
	testutils.AssertEqual(t, 3, len(env.msg.answers), "every callback answered once")
}

func TestBooking_BookedTimeExcluded(t *testing.T) {
	env := newTestEnv(t)
	env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)

	env.text(otherClient, keyboard.ButtonBook)
	env.click(otherClient, action.PickMaster{MasterID: env.master.ID})

	day10, ok := dayButton(env.msg.lastEdit(t).Grid, 10)
	testutils.AssertTrue(t, ok, "day 10 present")
	testutils.AssertFalse(t, day10.Actionable(), "fully booked day is not pickable")
	testutils.AssertEqual(t, "~10~", day10.Text, "fully booked day is struck through")

	// Устаревший календарь все еще может прислать выбор дня
	env.click(otherClient, june10)
	edit := env.msg.lastEdit(t)
	testutils.AssertEqual(t, textNoFreeTime, edit.Text, "no free time text")
	testutils.AssertEqual(t, 0, len(actionable(edit.Grid)), "14:00 excluded")
	testutils.AssertEqual(t, 1, len(edit.Grid), "only the back row")
}

func TestBooking_ZeroSlotsOnlyBack(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, action.Day(2024, time.June, 12))

	edit := env.msg.lastEdit(t)
	testutils.AssertEqual(t, keyboard.Times(nil), edit.Grid, "time menu has only back")
	testutils.AssertEqual(t, BookingSelectTime{MasterID: env.master.ID, Date: "2024-06-12", Prompt: env.msg.prompt(clientID)}, env.sessions.get(clientID), "state")
}

func TestBooking_PastDayRejected(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, action.Day(2024, time.May, 31))

	testutils.AssertEqual(t, textDatePassed, env.msg.lastAnswer(t), "past date notice")
	testutils.AssertEqual(t, BookingSelectDate{MasterID: env.master.ID, Prompt: env.msg.prompt(clientID)}, env.sessions.get(clientID), "state unchanged")
}

func TestBooking_NavigateRebuildsCalendarInPlace(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, action.NavigateTo(2024, time.June, 1))

	edit := env.msg.lastEdit(t)
	testutils.AssertTrue(t, edit.MarkupOnly, "navigation replaces only the keyboard")
	testutils.AssertEqual(t, "7/2024", edit.Grid[0][1].Text, "header shows July")
	testutils.AssertEqual(t, 0, len(actionable(edit.Grid))-2, "no pickable days without slots")
}

func TestBooking_TakenTimeRefreshesMenu(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, june10)

	// Кто-то успел занять время
	env.book(otherClient, "Olga", "+2000", bookingDate, bookingTime)
	env.click(clientID, action.PickTime{Time: bookingTime})

	testutils.AssertEqual(t, textTimeTaken, env.msg.lastAnswer(t), "taken notice")
	testutils.AssertEqual(t, BookingSelectTime{MasterID: env.master.ID, Date: bookingDate, Prompt: env.msg.prompt(clientID)}, env.sessions.get(clientID), "state unchanged")
}

func TestBooking_BackAborts(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, action.Back{})

	testutils.AssertEqual(t, textCancelled, env.msg.lastEdit(t).Text, "cancel text")
	testutils.AssertEqual(t, nil, env.sessions.get(clientID), "session discarded")
}

func TestBooking_NameAndPhoneStoredAsTyped(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, june10)
	env.click(clientID, action.PickTime{Time: bookingTime})
	env.text(clientID, "  Ivan Petrov ")
	env.text(clientID, " +7 900 000-00-00")

	appts := env.appointments()
	if len(appts) != 1 {
		t.Fatalf("Expected exactly one appointment, got %d", len(appts))
	}
	testutils.AssertEqual(t, "  Ivan Petrov ", appts[0].ClientName, "name kept as typed")
	testutils.AssertEqual(t, " +7 900 000-00-00", appts[0].ClientPhone, "phone kept as typed")
}

func TestBooking_NotificationFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.msg.notifyErr = fmt.Errorf("chat not found")

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, june10)
	env.click(clientID, action.PickTime{Time: bookingTime})
	env.text(clientID, "Ivan")
	env.text(clientID, "+1000")

	testutils.AssertEqual(t, 1, len(env.appointments()), "appointment saved")
	testutils.AssertTrue(t, strings.HasPrefix(env.msg.lastSent(t).Text, "Ваша запись сохранена!"), "client still confirmed")
}

func TestTextBack_ClearsSessionFromAnyState(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.click(clientID, action.PickMaster{MasterID: env.master.ID})
	env.click(clientID, june10)
	env.click(clientID, action.PickTime{Time: bookingTime})

	env.text(clientID, keyboard.ButtonBack)
	testutils.AssertEqual(t, nil, env.sessions.get(clientID), "session discarded")
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, textBackToMain, sent.Text, "client menu text")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.MainMenu()), sent.Markup, "client menu")

	// Назад из меню мастера
	env.text(masterTgID, keyboard.ButtonAddSlots)
	env.text(masterTgID, keyboard.ButtonBack)
	testutils.AssertEqual(t, nil, env.sessions.get(masterTgID), "master session discarded")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.MasterMenu()), env.msg.lastSent(t).Markup, "master menu")
}

func TestDeletion_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	appt := env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)
	env.book(otherClient, "Olga", "+2000", "2024-06-20", "10:00")
	before := len(env.appointments())

	env.text(masterTgID, keyboard.ButtonDeleteAppt)
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, textSelectDeleteDate, sent.Text, "deletion prompt")
	grid := sent.Markup.(keyboard.Inline)
	testutils.AssertEqual(t, []action.Action{
		action.NavigateTo(2024, time.June, -1),
		action.NavigateTo(2024, time.June, 1),
		june10,
		action.Day(2024, time.June, 20),
	}, actionable(grid), "only days with appointments are pickable")

	env.click(masterTgID, june10)
	edit := env.msg.lastEdit(t)
	testutils.AssertEqual(t, textSelectAppointment, edit.Text, "appointment prompt")
	testutils.AssertEqual(t, "14:00 Ivan", edit.Grid[0][0].Text, "appointment label")

	env.click(masterTgID, action.PickAppointment{AppointmentID: appt.ID})

	testutils.AssertEqual(t, before-1, len(env.appointments()), "appointment count drops by one")
	if len(env.msg.notified) != 1 {
		t.Fatalf("Expected client notification, got %d", len(env.msg.notified))
	}
	note := env.msg.notified[0]
	testutils.AssertEqual(t, clientID, note.ChatID, "client notified")
	testutils.AssertTrue(t, strings.Contains(note.Text, "2024-06-10 в 14:00"), "notice references date and time")
	testutils.AssertEqual(t, nil, env.sessions.get(masterTgID), "session cleared")
}

func TestDeletion_OrderedByTime(t *testing.T) {
	env := newTestEnv(t)
	env.book(clientID, "Ivan", "+1000", bookingDate, "16:00")
	env.book(otherClient, "Olga", "+2000", bookingDate, "09:30")

	env.text(masterTgID, keyboard.ButtonDeleteAppt)
	env.click(masterTgID, june10)

	edit := env.msg.lastEdit(t)
	testutils.AssertEqual(t, "09:30 Olga", edit.Grid[0][0].Text, "first option")
	testutils.AssertEqual(t, "16:00 Ivan", edit.Grid[1][0].Text, "second option")
}

func TestDeletion_NavigateRequeries(t *testing.T) {
	env := newTestEnv(t)
	env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)

	env.text(masterTgID, keyboard.ButtonDeleteAppt)
	env.book(otherClient, "Olga", "+2000", "2024-07-03", "10:00")
	env.click(masterTgID, action.NavigateTo(2024, time.June, 1))

	edit := env.msg.lastEdit(t)
	testutils.AssertTrue(t, edit.MarkupOnly, "keyboard replaced in place")
	day3, _ := dayButton(edit.Grid, 3)
	testutils.AssertEqual(t, action.Action(action.Day(2024, time.July, 3)), day3.Action, "new appointment date is pickable")
}

func TestDeletion_NothingToDelete(t *testing.T) {
	env := newTestEnv(t)

	env.text(masterTgID, keyboard.ButtonDeleteAppt)

	testutils.AssertEqual(t, textNothingToDelete, env.msg.lastSent(t).Text, "nothing to delete")
	testutils.AssertEqual(t, nil, env.sessions.get(masterTgID), "no session")
}

func TestDeletion_ClientIsRejected(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonDeleteAppt)

	testutils.AssertEqual(t, textMastersOnly, env.msg.lastSent(t).Text, "masters only")
	testutils.AssertEqual(t, nil, env.sessions.get(clientID), "no session")
}

func TestDeletion_LegacyAppointmentsSkipped(t *testing.T) {
	db := testutils.SetupTestDB(t)
	repo := &legacyRepository{Repository: db}
	env := newTestEnvWithRepo(t, db, repo)
	repo.legacy = []*models.Appointment{{ID: 999, MasterID: env.master.ID, UserID: clientID, Date: "2024-06-15"}}

	env.text(masterTgID, keyboard.ButtonDeleteAppt)
	grid := env.msg.lastSent(t).Markup.(keyboard.Inline)
	day15, _ := dayButton(grid, 15)
	testutils.AssertTrue(t, day15.Actionable(), "date with legacy record is marked")

	env.click(masterTgID, action.Day(2024, time.June, 15))

	testutils.AssertEqual(t, textNoAppointmentsDay, env.msg.lastEdit(t).Text, "no timed appointments")
	testutils.AssertEqual(t, nil, env.sessions.get(masterTgID), "flow ended")
}

func TestAvailability_Loop(t *testing.T) {
	env := newTestEnv(t)

	env.text(masterTgID, keyboard.ButtonAddSlots)
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, textSelectSlotDate, sent.Text, "slot date prompt")
	grid := sent.Markup.(keyboard.Inline)
	testutils.AssertEqual(t, 30+2, len(actionable(grid)), "every June day pickable plus navigation")

	env.click(masterTgID, action.Day(2024, time.June, 15))
	testutils.AssertEqual(t, "Дата 2024-06-15. Введите слоты в формате 13.00,14.30:", env.msg.lastEdit(t).Text, "slot prompt")

	env.text(masterTgID, "завтра после обеда")
	testutils.AssertEqual(t, validation.SlotListHint, env.msg.lastSent(t).Text, "format hint")
	testutils.AssertEqual(t, AvailabilityEnterSlots{MasterID: env.master.ID, Date: "2024-06-15"}, env.sessions.get(masterTgID), "still waiting")

	env.text(masterTgID, "13.00, 9:30")

	slots, err := env.store.ListAvailability(testutils.TestContext(), storage.AvailabilityFilter{MasterID: env.master.ID, Date: "2024-06-15"})
	testutils.AssertNoError(t, err, "list availability")
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.Time)
	}
	testutils.AssertEqual(t, []string{"09:30", "13:00"}, times, "stored slots")

	n := len(env.msg.sent)
	testutils.AssertEqual(t, "Слоты сохранены для 2024-06-15.", env.msg.sent[n-2].Text, "confirmation")
	testutils.AssertEqual(t, textSelectSlotDate, env.msg.sent[n-1].Text, "fresh calendar")
	testutils.AssertEqual(t, AvailabilitySelectDate{MasterID: env.master.ID, Prompt: env.msg.prompt(masterTgID)}, env.sessions.get(masterTgID), "loops back to date selection")

	// Второй день в той же сессии
	env.click(masterTgID, action.Day(2024, time.June, 16))
	env.text(masterTgID, "10.00")
	slots, err = env.store.ListAvailability(testutils.TestContext(), storage.AvailabilityFilter{MasterID: env.master.ID, Date: "2024-06-16"})
	testutils.AssertNoError(t, err, "list availability")
	testutils.AssertEqual(t, 1, len(slots), "second date populated")
}

func TestViewAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.TestContext()
	testutils.AssertNoError(t, env.store.CreateAvailability(ctx, &models.Availability{
		MasterID: env.master.ID, Date: bookingDate, Time: "15:00",
	}), "create availability")
	env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)

	env.text(masterTgID, keyboard.ButtonMySlots)

	testutils.AssertEqual(t, "2024-06-10:\n14:00 🔴\n15:00 🟢", env.msg.lastSent(t).Text, "availability view")
}

func TestAllAppointments(t *testing.T) {
	env := newTestEnv(t)
	env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)
	env.book(otherClient, "Olga", "+2000", "2024-05-20", "10:00")

	env.text(masterTgID, keyboard.ButtonAllBookings)

	testutils.AssertEqual(t, "2024-06-10 14:00 - Ivan, +1000", env.msg.lastSent(t).Text, "only upcoming appointments")
}

func TestStart_RegistersAndShowsRoleMenu(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.TestContext()

	env.command(clientID, "start")
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, textWelcomeClient, sent.Text, "client greeting")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.MainMenu()), sent.Markup, "client menu")
	user, err := env.store.GetUser(ctx, clientID)
	testutils.AssertNoError(t, err, "get user")
	testutils.AssertEqual(t, models.RoleClient, user.Role, "client role")

	env.command(masterTgID, "start")
	sent = env.msg.lastSent(t)
	testutils.AssertEqual(t, "Привет, мастер Anna!", sent.Text, "master greeting")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.MasterMenu()), sent.Markup, "master menu")
}

func TestStart_ClearsSession(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonBook)
	env.command(clientID, "start")

	testutils.AssertEqual(t, nil, env.sessions.get(clientID), "session cleared")
}

func TestID(t *testing.T) {
	env := newTestEnv(t)

	env.command(clientID, "id")

	testutils.AssertEqual(t, "Ваш Telegram ID: 100", env.msg.lastSent(t).Text, "id echo")
}

func TestAddMaster(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutils.TestContext()

	env.command(clientID, "addmaster", "700", "Olga")
	testutils.AssertEqual(t, textNoPermission, env.msg.lastSent(t).Text, "non-admin rejected")

	env.command(adminID, "addmaster", "700")
	testutils.AssertEqual(t, textAddMasterUsage, env.msg.lastSent(t).Text, "usage")

	env.command(adminID, "addmaster", "700", "Olga", "Ivanova")
	testutils.AssertEqual(t, "✅ Мастер Olga Ivanova добавлен.", env.msg.lastSent(t).Text, "added")

	master, err := env.store.GetMasterByTgID(ctx, 700)
	testutils.AssertNoError(t, err, "get master")
	testutils.AssertEqual(t, "Olga Ivanova", master.Name, "master name")
	user, err := env.store.GetUser(ctx, 700)
	testutils.AssertNoError(t, err, "get user")
	testutils.AssertEqual(t, models.RoleMaster, user.Role, "user promoted to master")
}

func TestMyBookingAndCancel(t *testing.T) {
	env := newTestEnv(t)

	env.command(clientID, "mybooking")
	testutils.AssertEqual(t, textNoBooking, env.msg.lastSent(t).Text, "no booking")
	env.text(clientID, keyboard.ButtonCancel)
	testutils.AssertEqual(t, textNothingToCancel, env.msg.lastSent(t).Text, "nothing to cancel")

	appt := env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)

	env.text(clientID, keyboard.ButtonMyBooking)
	testutils.AssertEqual(t, "2024-06-10 в 14:00 - Ivan, +1000", env.msg.lastSent(t).Text, "my booking")

	env.command(clientID, "cancelbooking")
	sent := env.msg.lastSent(t)
	testutils.AssertEqual(t, "Текущая запись: 2024-06-10 в 14:00", sent.Text, "current booking")
	testutils.AssertEqual(t, keyboard.Markup(keyboard.CancelConfirm(appt.ID)), sent.Markup, "confirm button")

	env.click(clientID, action.ConfirmCancel{AppointmentID: appt.ID})
	testutils.AssertEqual(t, textBookingCancelled, env.msg.lastEdit(t).Text, "cancelled")
	testutils.AssertEqual(t, 0, len(env.appointments()), "appointment removed")
	if len(env.msg.notified) != 1 || env.msg.notified[0].ChatID != masterTgID {
		t.Fatalf("Expected master to be notified, got %+v", env.msg.notified)
	}
}

func TestConfirmCancel_DeletesShownBookingOnly(t *testing.T) {
	env := newTestEnv(t)

	first := env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)
	env.text(clientID, keyboard.ButtonCancel)
	prompt := env.msg.lastSent(t)
	testutils.AssertEqual(t, "Текущая запись: 2024-06-10 в 14:00", prompt.Text, "prompt shows first booking")

	// Клиент записывается снова, пока старый запрос подтверждения висит в чате
	second := env.book(clientID, "Ivan", "+1000", "2024-06-12", "15:00")

	grid := prompt.Markup.(keyboard.Inline)
	env.click(clientID, grid[0][0].Action)

	left := env.appointments()
	testutils.AssertEqual(t, 1, len(left), "one booking left")
	testutils.AssertEqual(t, second.ID, left[0].ID, "newer booking kept")

	env.click(clientID, action.ConfirmCancel{AppointmentID: first.ID})
	testutils.AssertEqual(t, textCancelGone, env.msg.lastEdit(t).Text, "repeated confirm reports cancelled booking")
	testutils.AssertEqual(t, 1, len(env.appointments()), "nothing else deleted")
}

func TestConfirmCancel_RejectsForeignBooking(t *testing.T) {
	env := newTestEnv(t)

	appt := env.book(clientID, "Ivan", "+1000", bookingDate, bookingTime)
	env.click(otherClient, action.ConfirmCancel{AppointmentID: appt.ID})

	testutils.AssertEqual(t, textInvalidChoice, env.msg.lastAnswer(t), "rejected")
	testutils.AssertEqual(t, 1, len(env.appointments()), "booking kept")
	testutils.AssertEqual(t, 0, len(env.msg.notified), "master not notified")
}

func TestContacts(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, keyboard.ButtonContacts)

	testutils.AssertEqual(t, contactsText+"\n\nМастера:\n• Anna", env.msg.lastSent(t).Text, "contacts")
}

func TestCallback_StaleSession(t *testing.T) {
	env := newTestEnv(t)

	env.click(clientID, june10)

	testutils.AssertEqual(t, textSessionExpired, env.msg.lastAnswer(t), "expired notice")
	testutils.AssertEqual(t, 1, len(env.msg.answers), "answered once")
}

func TestCallback_SessionLoadFailureReportedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.engine.sessions = &brokenSessions{fakeSessions: newFakeSessions(), loadErr: fmt.Errorf("connection refused")}

	env.click(clientID, june10)

	testutils.AssertEqual(t, 1, len(env.msg.sent), "single error message")
	testutils.AssertEqual(t, textGenericError, env.msg.lastSent(t).Text, "error text")
	testutils.AssertEqual(t, []string{""}, env.msg.answers, "callback acknowledged without notice")
}

func TestCallback_KeyboardFromAnotherFlowRejected(t *testing.T) {
	env := newTestEnv(t)

	env.text(masterTgID, keyboard.ButtonAddSlots)
	slotCalendar := env.msg.prompt(masterTgID)

	env.text(masterTgID, keyboard.ButtonBook)
	env.click(masterTgID, action.PickMaster{MasterID: env.master.ID})
	booking := BookingSelectDate{MasterID: env.master.ID, Prompt: env.msg.prompt(masterTgID)}
	edits := len(env.msg.edits)

	// Календарь слотов остался в чате и все еще нажимается
	env.clickOn(masterTgID, slotCalendar, action.Encode(action.Day(2024, time.June, 15)))
	testutils.AssertEqual(t, textStaleKeyboard, env.msg.lastAnswer(t), "stale day rejected")
	env.clickOn(masterTgID, slotCalendar, action.Encode(action.Back{}))
	testutils.AssertEqual(t, textStaleKeyboard, env.msg.lastAnswer(t), "stale back rejected")

	testutils.AssertEqual(t, booking, env.sessions.get(masterTgID), "booking flow untouched")
	testutils.AssertEqual(t, edits, len(env.msg.edits), "no message edited")

	env.click(masterTgID, june10)
	testutils.AssertEqual(t, textSelectTime, env.msg.lastEdit(t).Text, "current calendar still works")
}

func TestCallback_InvalidData(t *testing.T) {
	env := newTestEnv(t)

	env.clickData(clientID, "SLOT:5")

	testutils.AssertEqual(t, textInvalidChoice, env.msg.lastAnswer(t), "invalid choice")
	testutils.AssertEqual(t, 0, len(env.msg.edits), "message untouched")
}

func TestCallback_NoopIsSilent(t *testing.T) {
	env := newTestEnv(t)

	env.click(clientID, action.Noop{})

	testutils.AssertEqual(t, []string{""}, env.msg.answers, "empty acknowledgement")
	testutils.AssertEqual(t, 0, len(env.msg.edits)+len(env.msg.sent), "nothing else sent")
}

func TestUnknownTextWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	env.text(clientID, "привет")

	testutils.AssertEqual(t, textPressStart, env.msg.lastSent(t).Text, "start hint")
}

func TestStateCodec(t *testing.T) {
	states := []State{
		BookingSelectMaster{},
		BookingSelectMaster{Prompt: 7},
		BookingSelectDate{MasterID: 1, Prompt: 7},
		BookingSelectTime{MasterID: 1, Date: bookingDate},
		BookingEnterName{MasterID: 1, Date: bookingDate, Time: bookingTime},
		BookingEnterPhone{MasterID: 1, Date: bookingDate, Time: bookingTime, Name: "Ivan"},
		DeletionSelectDate{MasterID: 1},
		DeletionSelectAppointment{MasterID: 1, Date: bookingDate, Prompt: 7},
		AvailabilitySelectDate{MasterID: 1},
		AvailabilityEnterSlots{MasterID: 1, Date: bookingDate},
	}

	for _, s := range states {
		raw, err := MarshalState(s)
		testutils.AssertNoError(t, err, "marshal")
		got, err := UnmarshalState(raw)
		testutils.AssertNoError(t, err, "unmarshal")
		if !reflect.DeepEqual(s, got) {
			t.Errorf("Round trip of %T gave %#v", s, got)
		}
	}

	if _, err := UnmarshalState([]byte(`{"kind":"unknown","data":{}}`)); err == nil {
		t.Error("Expected error for unknown state kind")
	}
}
