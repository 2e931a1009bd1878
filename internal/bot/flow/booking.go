package flow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/calendar"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// startBooking показывает список мастеров
func (e *Engine) startBooking(ctx context.Context, chatID, userID int64) {
	masters, err := e.store.ListMasters(ctx)
	if err != nil {
		e.logger.Error("Failed to list masters", logger.Error(err))
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	if len(masters) == 0 {
		e.clearSession(ctx, userID)
		e.send(ctx, chatID, textNoMasters, nil)
		return
	}

	options := make([]keyboard.MasterOption, 0, len(masters))
	for _, m := range masters {
		options = append(options, keyboard.MasterOption{ID: m.ID, Name: m.Name})
	}

	prompt := e.sendPrompt(ctx, chatID, textSelectMaster, keyboard.Masters(options))
	e.saveSession(ctx, userID, BookingSelectMaster{Prompt: prompt})
	metrics.RecordFlowStart(FlowBooking)
}

func (e *Engine) bookingSelectMaster(ctx context.Context, cb Callback, st BookingSelectMaster, act action.Action) string {
	switch a := act.(type) {
	case action.PickMaster:
		master, err := e.store.GetMaster(ctx, a.MasterID)
		if err != nil {
			if !errors.Is(err, errors.ErrMasterNotFound) {
				e.logger.Error("Failed to get master",
					logger.Int64("master_id", a.MasterID),
					logger.Error(err),
				)
				return textGenericError
			}
			e.clearSession(ctx, cb.UserID)
			metrics.RecordFlowFinish(FlowBooking, "failed")
			e.editText(ctx, cb, textMasterNotFound, nil)
			return ""
		}

		now := e.now()
		grid, err := e.bookingCalendar(ctx, master.ID, now.Year(), now.Month())
		if err != nil {
			return textGenericError
		}

		e.saveSession(ctx, cb.UserID, BookingSelectDate{MasterID: master.ID, Prompt: cb.MessageID})
		e.editText(ctx, cb, textSelectDate, grid)
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

func (e *Engine) bookingSelectDate(ctx context.Context, cb Callback, st BookingSelectDate, act action.Action) string {
	switch a := act.(type) {
	case action.Navigate:
		grid, err := e.bookingCalendar(ctx, st.MasterID, a.Year, a.Month)
		if err != nil {
			return textGenericError
		}
		e.editMarkup(ctx, cb, grid)
		return ""
	case action.PickDay:
		date := a.ISODate()
		if date < e.today() {
			return textDatePassed
		}

		times, err := e.freeTimes(ctx, st.MasterID, date)
		if err != nil {
			return textGenericError
		}

		text := textSelectTime
		if len(times) == 0 {
			text = textNoFreeTime
		}

		e.saveSession(ctx, cb.UserID, BookingSelectTime{MasterID: st.MasterID, Date: date, Prompt: cb.MessageID})
		e.editText(ctx, cb, text, keyboard.Times(times))
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

func (e *Engine) bookingSelectTime(ctx context.Context, cb Callback, st BookingSelectTime, act action.Action) string {
	switch a := act.(type) {
	case action.PickTime:
		times, err := e.freeTimes(ctx, st.MasterID, st.Date)
		if err != nil {
			return textGenericError
		}
		if !contains(times, a.Time) {
			e.editText(ctx, cb, textSelectTime, keyboard.Times(times))
			return textTimeTaken
		}

		e.saveSession(ctx, cb.UserID, BookingEnterName{
			MasterID: st.MasterID,
			Date:     st.Date,
			Time:     a.Time,
		})
		e.editText(ctx, cb, textEnterName, nil)
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

func (e *Engine) bookingEnterName(ctx context.Context, msg Message, st BookingEnterName, name string) {
	e.saveSession(ctx, msg.UserID, BookingEnterPhone{
		MasterID: st.MasterID,
		Date:     st.Date,
		Time:     st.Time,
		Name:     name,
	})
	e.send(ctx, msg.ChatID, textEnterPhone, nil)
}

func (e *Engine) bookingEnterPhone(ctx context.Context, msg Message, st BookingEnterPhone, phone string) {
	// Сессия очищается при любом исходе
	e.clearSession(ctx, msg.UserID)

	slot := st.Time
	appt := &models.Appointment{
		MasterID:    st.MasterID,
		UserID:      msg.UserID,
		ClientName:  st.Name,
		ClientPhone: phone,
		Date:        st.Date,
		Time:        &slot,
	}

	if err := e.store.CreateAppointment(ctx, appt); err != nil {
		e.logger.Error("Failed to create appointment",
			logger.Int64("user_id", msg.UserID),
			logger.Int64("master_id", st.MasterID),
			logger.String("date", st.Date),
			logger.String("time", st.Time),
			logger.Error(err),
		)
		metrics.RecordFlowFinish(FlowBooking, "failed")
		e.send(ctx, msg.ChatID, textBookingFailed, keyboard.MainMenu())
		return
	}

	metrics.RecordAppointmentCreation()
	metrics.RecordFlowFinish(FlowBooking, "completed")

	e.logger.Info("Appointment created",
		logger.Int64("appointment_id", appt.ID),
		logger.Int64("user_id", msg.UserID),
		logger.Int64("master_id", st.MasterID),
		logger.String("date", st.Date),
		logger.String("time", st.Time),
	)

	masterName := ""
	master, err := e.store.GetMaster(ctx, st.MasterID)
	if err != nil {
		e.logger.Warn("Failed to get master for notification",
			logger.Int64("master_id", st.MasterID),
			logger.Error(err),
		)
	} else {
		masterName = master.Name
	}

	e.send(ctx, msg.ChatID, fmt.Sprintf(textBookingSaved, st.Date, st.Time, masterName), keyboard.MainMenu())

	if master != nil {
		e.notify(ctx, master.TgID, "new_booking",
			fmt.Sprintf(textNotifyNewBooking, st.Name, phone, st.Date, st.Time))
	}
}

// bookingCalendar строит календарь записи: недоступны прошедшие дни и дни без свободного времени
func (e *Engine) bookingCalendar(ctx context.Context, masterID int64, year int, month time.Month) (keyboard.Inline, error) {
	from, to := calendar.MonthRange(year, month)

	slots, err := e.store.ListAvailability(ctx, storage.AvailabilityFilter{MasterID: masterID, From: from, To: to})
	if err != nil {
		e.logger.Error("Failed to list availability",
			logger.Int64("master_id", masterID),
			logger.Error(err),
		)
		return nil, err
	}

	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{MasterID: masterID, From: from, To: to})
	if err != nil {
		e.logger.Error("Failed to list appointments",
			logger.Int64("master_id", masterID),
			logger.Error(err),
		)
		return nil, err
	}

	free := freeByDate(slots, e.bookedByDate(appts))
	today := e.today()

	unavailable := calendar.NewDateSet()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		if date < today || len(free[date]) == 0 {
			unavailable.Add(date)
		}
	}

	return calendar.Build(year, month, unavailable, calendar.PickFree), nil
}

// freeTimes возвращает отсортированные свободные времена мастера на дату
func (e *Engine) freeTimes(ctx context.Context, masterID int64, date string) ([]string, error) {
	slots, err := e.store.ListAvailability(ctx, storage.AvailabilityFilter{MasterID: masterID, Date: date})
	if err != nil {
		e.logger.Error("Failed to list availability",
			logger.Int64("master_id", masterID),
			logger.String("date", date),
			logger.Error(err),
		)
		return nil, err
	}

	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{MasterID: masterID, Date: date})
	if err != nil {
		e.logger.Error("Failed to list appointments",
			logger.Int64("master_id", masterID),
			logger.String("date", date),
			logger.Error(err),
		)
		return nil, err
	}

	return freeByDate(slots, e.bookedByDate(appts))[date], nil
}

// bookedByDate группирует занятые времена по датам; записи без времени пропускаются
func (e *Engine) bookedByDate(appts []*models.Appointment) map[string]map[string]bool {
	booked := make(map[string]map[string]bool)
	for _, a := range appts {
		if !a.HasTime() {
			e.logger.Warn("Skipping appointment without time",
				logger.Int64("appointment_id", a.ID),
				logger.String("date", a.Date),
			)
			continue
		}
		if booked[a.Date] == nil {
			booked[a.Date] = make(map[string]bool)
		}
		booked[a.Date][*a.Time] = true
	}
	return booked
}

// freeByDate вычитает занятые времена из слотов; повторяющиеся слоты схлопываются
func freeByDate(slots []*models.Availability, booked map[string]map[string]bool) map[string][]string {
	seen := make(map[string]map[string]bool)
	free := make(map[string][]string)
	for _, s := range slots {
		if booked[s.Date][s.Time] {
			continue
		}
		if seen[s.Date] == nil {
			seen[s.Date] = make(map[string]bool)
		}
		if seen[s.Date][s.Time] {
			continue
		}
		seen[s.Date][s.Time] = true
		free[s.Date] = append(free[s.Date], s.Time)
	}
	for _, times := range free {
		sort.Strings(times)
	}
	return free
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
