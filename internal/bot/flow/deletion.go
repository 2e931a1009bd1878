package flow

import (
	"context"
	"fmt"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/calendar"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// startDeletion показывает календарь с датами, на которые у мастера есть записи
func (e *Engine) startDeletion(ctx context.Context, chatID, userID int64) {
	master, ok := e.requireMaster(ctx, chatID, userID)
	if !ok {
		return
	}

	busy, err := e.appointmentDates(ctx, master.ID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	if len(busy) == 0 {
		e.clearSession(ctx, userID)
		e.send(ctx, chatID, textNothingToDelete, nil)
		return
	}

	now := e.now()
	prompt := e.sendPrompt(ctx, chatID, textSelectDeleteDate, calendar.Build(now.Year(), now.Month(), busy, calendar.PickMarked))
	e.saveSession(ctx, userID, DeletionSelectDate{MasterID: master.ID, Prompt: prompt})
	metrics.RecordFlowStart(FlowDeletion)
}

func (e *Engine) deletionSelectDate(ctx context.Context, cb Callback, st DeletionSelectDate, act action.Action) string {
	switch a := act.(type) {
	case action.Navigate:
		busy, err := e.appointmentDates(ctx, st.MasterID)
		if err != nil {
			return textGenericError
		}
		e.editMarkup(ctx, cb, calendar.Build(a.Year, a.Month, busy, calendar.PickMarked))
		return ""
	case action.PickDay:
		date := a.ISODate()
		appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{
			MasterID: st.MasterID,
			Date:     date,
			Order:    storage.OrderByDateTime,
		})
		if err != nil {
			e.logger.Error("Failed to list appointments",
				logger.Int64("master_id", st.MasterID),
				logger.String("date", date),
				logger.Error(err),
			)
			return textGenericError
		}

		options := make([]keyboard.AppointmentOption, 0, len(appts))
		for _, appt := range appts {
			if !appt.HasTime() {
				e.logger.Warn("Skipping appointment without time",
					logger.Int64("appointment_id", appt.ID),
					logger.String("date", appt.Date),
				)
				continue
			}
			options = append(options, keyboard.AppointmentOption{
				ID:    appt.ID,
				Label: fmt.Sprintf("%s %s", *appt.Time, appt.ClientName),
			})
		}

		if len(options) == 0 {
			e.clearSession(ctx, cb.UserID)
			metrics.RecordFlowFinish(FlowDeletion, "empty")
			e.editText(ctx, cb, textNoAppointmentsDay, nil)
			return ""
		}

		e.saveSession(ctx, cb.UserID, DeletionSelectAppointment{MasterID: st.MasterID, Date: date, Prompt: cb.MessageID})
		e.editText(ctx, cb, textSelectAppointment, keyboard.Appointments(options))
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

func (e *Engine) deletionSelectAppointment(ctx context.Context, cb Callback, st DeletionSelectAppointment, act action.Action) string {
	switch a := act.(type) {
	case action.PickAppointment:
		e.clearSession(ctx, cb.UserID)

		appt, err := e.store.GetAppointment(ctx, a.AppointmentID)
		if err != nil && !errors.Is(err, errors.ErrAppointmentNotFound) {
			e.logger.Error("Failed to get appointment",
				logger.Int64("appointment_id", a.AppointmentID),
				logger.Error(err),
			)
			metrics.RecordFlowFinish(FlowDeletion, "failed")
			e.editText(ctx, cb, textGenericError, nil)
			return ""
		}
		if appt == nil || appt.MasterID != st.MasterID {
			metrics.RecordFlowFinish(FlowDeletion, "failed")
			e.editText(ctx, cb, textAppointmentGone, nil)
			return ""
		}

		if err := e.store.DeleteAppointment(ctx, appt.ID); err != nil {
			e.logger.Error("Failed to delete appointment",
				logger.Int64("appointment_id", appt.ID),
				logger.Error(err),
			)
			metrics.RecordFlowFinish(FlowDeletion, "failed")
			e.editText(ctx, cb, textGenericError, nil)
			return ""
		}

		metrics.RecordAppointmentCancellation("master")
		metrics.RecordFlowFinish(FlowDeletion, "completed")
		e.logger.Info("Appointment deleted by master",
			logger.Int64("appointment_id", appt.ID),
			logger.Int64("master_id", st.MasterID),
		)

		if appt.UserID != 0 {
			e.notify(ctx, appt.UserID, "master_cancelled",
				fmt.Sprintf(textNotifyMasterGone, appt.GetFormattedDateTime()))
		}

		e.editText(ctx, cb, fmt.Sprintf(textAppointmentDelete, appt.GetFormattedDateTime()), nil)
		return ""
	case action.Back:
		e.abort(ctx, cb, st)
		return ""
	default:
		return textInvalidChoice
	}
}

// appointmentDates возвращает множество дат, на которые у мастера есть записи
func (e *Engine) appointmentDates(ctx context.Context, masterID int64) (calendar.DateSet, error) {
	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{MasterID: masterID})
	if err != nil {
		e.logger.Error("Failed to list appointments",
			logger.Int64("master_id", masterID),
			logger.Error(err),
		)
		return nil, err
	}

	dates := calendar.NewDateSet()
	for _, a := range appts {
		dates.Add(a.Date)
	}
	return dates, nil
}
