package flow

import (
	"context"
	"fmt"
	"strings"

	"telegram_booking_bot/internal/bot/keyboard"
	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/internal/validation"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/logger"
	"telegram_booking_bot/pkg/metrics"
)

// start регистрирует пользователя и показывает меню его роли
func (e *Engine) start(ctx context.Context, chatID, userID int64) {
	e.clearSession(ctx, userID)

	master, err := e.masterByUser(ctx, userID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	role := models.RoleClient
	if master != nil {
		role = models.RoleMaster
	}

	created, err := e.store.SaveUser(ctx, userID, role)
	if err != nil {
		e.logger.Error("Failed to save user",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		e.send(ctx, chatID, textGenericError, nil)
		return
	}
	if created {
		metrics.RecordUserRegistration(role)
		e.logger.Info("User registered",
			logger.Int64("user_id", userID),
			logger.String("role", role),
		)
	}

	if master != nil {
		e.send(ctx, chatID, fmt.Sprintf(textWelcomeMaster, master.Name), keyboard.MasterMenu())
		return
	}
	e.send(ctx, chatID, textWelcomeClient, keyboard.MainMenu())
}

func (e *Engine) showID(ctx context.Context, chatID, userID int64) {
	e.send(ctx, chatID, fmt.Sprintf(textYourID, userID), nil)
}

// addMaster регистрирует мастера; доступно только администраторам
func (e *Engine) addMaster(ctx context.Context, cmd Command) {
	if !e.config.IsAdmin(cmd.UserID) {
		e.logger.Warn("Unauthorized addmaster attempt",
			logger.Int64("user_id", cmd.UserID),
			logger.Error(errors.ErrAccessDenied),
		)
		e.send(ctx, cmd.ChatID, textNoPermission, nil)
		return
	}

	tgID, name, err := validation.ParseAddMasterArgs(cmd.Args)
	if err != nil {
		e.send(ctx, cmd.ChatID, textAddMasterUsage, nil)
		return
	}

	if _, err := e.store.SaveUser(ctx, tgID, models.RoleMaster); err != nil {
		e.logger.Error("Failed to save master user",
			logger.Int64("tg_id", tgID),
			logger.Error(err),
		)
		e.send(ctx, cmd.ChatID, textGenericError, nil)
		return
	}

	master, err := e.store.CreateMaster(ctx, tgID, name)
	if err != nil {
		e.logger.Error("Failed to create master",
			logger.Int64("tg_id", tgID),
			logger.Error(err),
		)
		e.send(ctx, cmd.ChatID, textGenericError, nil)
		return
	}

	metrics.RecordUserRegistration(models.RoleMaster)
	e.logger.Info("Master added",
		logger.Int64("master_id", master.ID),
		logger.Int64("tg_id", tgID),
		logger.Int64("admin_id", cmd.UserID),
	)
	e.send(ctx, cmd.ChatID, fmt.Sprintf(textMasterAdded, master.Name), nil)
}

// latestBooking возвращает последнюю по времени создания запись клиента
func (e *Engine) latestBooking(ctx context.Context, userID int64) (*models.Appointment, error) {
	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{
		UserID: userID,
		Order:  storage.OrderByCreatedDesc,
		Limit:  1,
	})
	if err != nil {
		e.logger.Error("Failed to get latest booking",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		return nil, err
	}
	if len(appts) == 0 {
		return nil, nil
	}
	return appts[0], nil
}

func (e *Engine) myBooking(ctx context.Context, chatID, userID int64) {
	appt, err := e.latestBooking(ctx, userID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return
	}
	if appt == nil {
		e.send(ctx, chatID, textNoBooking, nil)
		return
	}

	e.send(ctx, chatID, fmt.Sprintf(textMyBooking,
		appt.Date, appt.GetFormattedTime(), appt.ClientName, appt.ClientPhone), nil)
}

func (e *Engine) cancelBooking(ctx context.Context, chatID, userID int64) {
	appt, err := e.latestBooking(ctx, userID)
	if err != nil {
		e.send(ctx, chatID, textGenericError, nil)
		return
	}
	if appt == nil {
		e.send(ctx, chatID, textNothingToCancel, nil)
		return
	}

	e.send(ctx, chatID, fmt.Sprintf(textCurrentBooking, appt.GetFormattedDateTime()), keyboard.CancelConfirm(appt.ID))
}

// confirmCancel удаляет запись, показанную клиенту в запросе подтверждения, и уведомляет мастера
func (e *Engine) confirmCancel(ctx context.Context, cb Callback, appointmentID int64) string {
	appt, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, errors.ErrAppointmentNotFound) {
			e.editText(ctx, cb, textCancelGone, nil)
			return ""
		}
		e.logger.Error("Failed to get appointment for cancellation",
			logger.Int64("appointment_id", appointmentID),
			logger.Error(err),
		)
		return textGenericError
	}
	if appt.UserID != cb.UserID {
		e.logger.Warn("Cancellation of foreign appointment rejected",
			logger.Int64("appointment_id", appointmentID),
			logger.Int64("user_id", cb.UserID),
			logger.Error(errors.ErrAccessDenied),
		)
		return textInvalidChoice
	}

	if err := e.store.DeleteAppointment(ctx, appt.ID); err != nil {
		e.logger.Error("Failed to cancel appointment",
			logger.Int64("appointment_id", appt.ID),
			logger.Error(err),
		)
		e.editText(ctx, cb, textCancelFailed, nil)
		return ""
	}

	metrics.RecordAppointmentCancellation("client")
	e.logger.Info("Appointment cancelled by client",
		logger.Int64("appointment_id", appt.ID),
		logger.Int64("user_id", cb.UserID),
	)

	master, err := e.store.GetMaster(ctx, appt.MasterID)
	if err != nil {
		e.logger.Warn("Failed to get master for notification",
			logger.Int64("master_id", appt.MasterID),
			logger.Error(err),
		)
	} else {
		e.notify(ctx, master.TgID, "client_cancelled",
			fmt.Sprintf(textNotifyClientGone, appt.ClientName, appt.GetFormattedDateTime()))
	}

	e.editText(ctx, cb, textBookingCancelled, nil)
	return ""
}

// contacts показывает контактную информацию и список мастеров
func (e *Engine) contacts(ctx context.Context, chatID int64) {
	text := e.config.ContactsText

	masters, err := e.store.ListMasters(ctx)
	if err != nil {
		e.logger.Warn("Failed to list masters for contacts", logger.Error(err))
	}
	if len(masters) > 0 {
		names := make([]string, 0, len(masters))
		for _, m := range masters {
			names = append(names, "• "+m.Name)
		}
		text += "\n\n" + textContactsMasters + "\n" + strings.Join(names, "\n")
	}

	e.send(ctx, chatID, text, nil)
}

// allAppointments показывает мастеру предстоящие записи
func (e *Engine) allAppointments(ctx context.Context, chatID, userID int64) {
	master, ok := e.requireMaster(ctx, chatID, userID)
	if !ok {
		return
	}

	appts, err := e.store.ListAppointments(ctx, storage.AppointmentFilter{
		MasterID: master.ID,
		From:     e.today(),
		Order:    storage.OrderByDateTime,
	})
	if err != nil {
		e.logger.Error("Failed to list appointments",
			logger.Int64("master_id", master.ID),
			logger.Error(err),
		)
		e.send(ctx, chatID, textGenericError, nil)
		return
	}

	if len(appts) == 0 {
		e.send(ctx, chatID, textNoAppointments, keyboard.MasterMenu())
		return
	}

	lines := make([]string, 0, len(appts))
	for _, a := range appts {
		lines = append(lines, fmt.Sprintf("%s %s - %s, %s", a.Date, a.GetFormattedTime(), a.ClientName, a.ClientPhone))
	}
	e.send(ctx, chatID, strings.Join(lines, "\n"), keyboard.MasterMenu())
}
