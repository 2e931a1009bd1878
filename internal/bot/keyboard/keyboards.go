package keyboard

import (
	"github.com/go-telegram/bot/models"

	"telegram_booking_bot/internal/bot/action"
)

// Тексты кнопок меню
const (
	ButtonBook        = "📝 Запись"
	ButtonMyBooking   = "📋 Моя запись"
	ButtonCancel      = "❌ Отменить запись"
	ButtonContacts    = "☎ Контакты"
	ButtonMySlots     = "📅 Мои слоты"
	ButtonAddSlots    = "🗓 Указать дату и время"
	ButtonDeleteAppt  = "🗑 Удалить запись"
	ButtonAllBookings = "📄 Все записи"
	ButtonBack        = "↩ Назад"

	ConfirmCancelText = "❌ Подтвердить отмену"
)

// Markup - клавиатура, прикрепляемая к сообщению
type Markup interface {
	isMarkup()
}

// Button - inline кнопка с типизированным действием
type Button struct {
	Text   string
	Action action.Action
}

// Inline - сетка inline кнопок
type Inline [][]Button

// Menu - постоянная клавиатура с текстовыми кнопками
type Menu [][]string

// Remove убирает постоянную клавиатуру
type Remove struct{}

func (Inline) isMarkup() {}
func (Menu) isMarkup()   {}
func (Remove) isMarkup() {}

// Row возвращает строку кнопок
func Row(buttons ...Button) []Button {
	return buttons
}

// Label возвращает неактивную кнопку
func Label(text string) Button {
	return Button{Text: text, Action: action.Noop{}}
}

// BackButton возвращает кнопку выхода из диалога
func BackButton() Button {
	return Button{Text: ButtonBack, Action: action.Back{}}
}

// Actionable проверяет, что кнопка что-то делает
func (b Button) Actionable() bool {
	_, noop := b.Action.(action.Noop)
	return b.Action != nil && !noop
}

// ToTelegram преобразует клавиатуру в модель go-telegram; nil означает отсутствие клавиатуры
func ToTelegram(m Markup) models.ReplyMarkup {
	switch v := m.(type) {
	case nil:
		return nil
	case Inline:
		return InlineMarkup(v)
	case Menu:
		rows := make([][]models.KeyboardButton, 0, len(v))
		for _, row := range v {
			buttons := make([]models.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, models.KeyboardButton{Text: text})
			}
			rows = append(rows, buttons)
		}
		return &models.ReplyKeyboardMarkup{
			Keyboard:       rows,
			ResizeKeyboard: true,
		}
	case Remove:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	default:
		return nil
	}
}

// InlineMarkup преобразует inline сетку в модель go-telegram
func InlineMarkup(grid Inline) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(grid))
	for _, row := range grid {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: action.Encode(b.Action),
			})
		}
		rows = append(rows, buttons)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// MainMenu создает меню клиента
func MainMenu() Menu {
	return Menu{
		{ButtonBook, ButtonMyBooking},
		{ButtonCancel, ButtonContacts},
	}
}

// MasterMenu создает меню мастера
func MasterMenu() Menu {
	return Menu{
		{ButtonMySlots, ButtonAddSlots},
		{ButtonDeleteAppt, ButtonAllBookings},
		{ButtonBack},
	}
}

// MasterOption описывает мастера для выбора
type MasterOption struct {
	ID   int64
	Name string
}

// Masters создает inline клавиатуру выбора мастера
func Masters(masters []MasterOption) Inline {
	grid := make(Inline, 0, len(masters)+1)
	for _, m := range masters {
		grid = append(grid, Row(Button{Text: m.Name, Action: action.PickMaster{MasterID: m.ID}}))
	}
	return append(grid, Row(BackButton()))
}

// Times создает inline клавиатуру выбора времени
func Times(times []string) Inline {
	grid := make(Inline, 0, len(times)+1)
	for _, t := range times {
		grid = append(grid, Row(Button{Text: t, Action: action.PickTime{Time: t}}))
	}
	return append(grid, Row(BackButton()))
}

// AppointmentOption описывает запись для выбора
type AppointmentOption struct {
	ID    int64
	Label string
}

// Appointments создает inline клавиатуру выбора записи
func Appointments(appts []AppointmentOption) Inline {
	grid := make(Inline, 0, len(appts)+1)
	for _, a := range appts {
		grid = append(grid, Row(Button{Text: a.Label, Action: action.PickAppointment{AppointmentID: a.ID}}))
	}
	return append(grid, Row(BackButton()))
}

// CancelConfirm создает клавиатуру подтверждения отмены записи appointmentID
func CancelConfirm(appointmentID int64) Inline {
	return Inline{
		Row(Button{Text: ConfirmCancelText, Action: action.ConfirmCancel{AppointmentID: appointmentID}}),
	}
}
