package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/calendar"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/internal/validation"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// startAvailability показывает календарь для добавления слотов
func (e *Engine) startAvailability(ctx context.Context, chatID, userID int64) {
	master, ok := e.requireMaster(ctx, chatID, userID)
	if !ok {
		return
	}

	now := e.now()
	prompt := e.sendPrompt(ctx, chatID, textSelectSlotDate, availabilityCalendar(now.Year(), now.Month()))
	e.saveSession(ctx, userID, AvailabilitySelectDate{MasterID: master.ID, Prompt: prompt})
	metrics.RecordFlowStart(FlowAvailability)
}

func (e *Engine) availabilitySelectDate(ctx context.Context, cb Callback, st AvailabilitySelectDate, act action.Action) string {
	switch a := act.(type) {
	case action.Navigate:
		e.editMarkup(ctx, cb, availabilityCalendar(a.Year, a.Month))
		return ""
	case action.PickDay:
		date := a.ISODate()
		e.saveSession(ctx, cb.UserID, AvailabilityEnterSlots{MasterID: st.MasterID, Date: date})
		e.editText(ctx, cb, fmt.Sprintf(textEnterSlots, date), nil)
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

func (e *Engine) availabilityEnterSlots(ctx context.Context, msg Message, st AvailabilityEnterSlots, text string) {
	times, err := validation.ParseSlotList(text)
	if err != nil {
		// Остаемся в ожидании корректного ввода
		e.send(ctx, msg.ChatID, validation.SlotListHint, nil)
		return
	}

	for _, t := range times {
		slot := &models.Availability{MasterID: st.MasterID, Date: st.Date, Time: t}
		if err := e.store.CreateAvailability(ctx, slot); err != nil {
			e.logger.Error("Failed to create availability slot",
				logger.Int64("master_id", st.MasterID),
				logger.String("date", st.Date),
				logger.String("time", t),
				logger.Error(err),
			)
			e.send(ctx, msg.ChatID, textSlotsFailed, nil)
			return
		}
	}

	metrics.RecordAvailabilitySlots(len(times))
	e.logger.Info("Availability slots created",
		logger.Int64("master_id", st.MasterID),
		logger.String("date", st.Date),
		logger.String("times", strings.Join(times, ",")),
	)

	now := e.now()
	year, month := now.Year(), now.Month()
	if d, err := validation.ValidateDate(st.Date); err == nil {
		year, month = d.Year(), d.Month()
	}

	e.send(ctx, msg.ChatID, fmt.Sprintf(textSlotsSaved, st.Date), nil)
	prompt := e.sendPrompt(ctx, msg.ChatID, textSelectSlotDate, availabilityCalendar(year, month))
	e.saveSession(ctx, msg.UserID, AvailabilitySelectDate{MasterID: st.MasterID, Prompt: prompt})
}

// viewAvailability показывает слоты мастера начиная с сегодняшнего дня
func (e *Engine) viewAvailability(ctx context.Context, chatID, userID int64) {
	master, ok := e.requireMaster(ctx, chatID, userID)
	if !ok {
		return
	}

	today := e.today()
	slots, err := e.store.ListAvailability(ctx, storage.AvailabilityFilter{MasterID: master.ID, From: today})
	if err != nil {
		e.logger.Error("Failed to list availability", logger.Int64("master_id", master.ID), logger.Error(err))
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{MasterID: master.ID, From: today})
	if err != nil {
		e.logger.Error("Failed to list appointments", logger.Int64("master_id", master.ID), logger.Error(err))
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	e.send(ctx, chatID, formatAvailability(slots, e.bookedByDate(appts)), keyboard.MasterMenu())
}

// formatAvailability выводит слоты по датам: 🟢 свободно, 🔴 занято
func formatAvailability(slots []*models.Availability, booked map[string]map[string]bool) string {
	if len(slots) == 0 {
		return textNoSlots
	}

	var b strings.Builder
	current := ""
	for _, s := range slots {
		if s.Date != current {
			if current != "" {
				b.WriteString("\n")
			}
			current = s.Date
			b.WriteString(s.Date + ":\n")
		}
		mark := "🟢"
		if booked[s.Date][s.Time] {
			mark = "🔴"
		}
		b.WriteString(s.Time + " " + mark + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func availabilityCalendar(year int, month time.Month) keyboard.Inline {
	return calendar.Build(year, month, nil, calendar.PickFree)
}
