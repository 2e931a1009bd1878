// Package action описывает действия inline-кнопок и их кодирование в callback data.
//
// Формат токена: тег вида действия и параметры через "|", например "CAL|2024|6"
// или "DAY|2024-06-10". Токен декодируется один раз на границе, дальше диалоги
// работают только с типизированными значениями.
package action

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram_booking_bot/pkg/errors"
)

const dateLayout = "2006-01-02"

// Теги видов действий
const (
	tagNoop        = "NOOP"
	tagNavigate    = "CAL"
	tagPickDay     = "DAY"
	tagMaster      = "MASTER"
	tagTime        = "TIME"
	tagAppointment = "APPT"
	tagBack        = "BACK"
	tagCancel      = "DO_CANCEL"
)

const separator = "|"

// Action - закрытое множество действий кнопок
type Action interface {
	isAction()
}

// Noop - неактивная ячейка (подпись, пустая клетка, занятый день)
type Noop struct{}

// Navigate переключает календарь на указанный месяц
type Navigate struct {
	Year  int
	Month time.Month
}

// PickDay выбирает день календаря
type PickDay struct {
	Date time.Time
}

// PickMaster выбирает мастера
type PickMaster struct {
	MasterID int64
}

// PickTime выбирает время в формате HH:MM
type PickTime struct {
	Time string
}

// PickAppointment выбирает запись для удаления
type PickAppointment struct {
	AppointmentID int64
}

// Back выходит из текущего диалога
type Back struct{}

// ConfirmCancel подтверждает отмену показанной клиенту записи
type ConfirmCancel struct {
	AppointmentID int64
}

func (Noop) isAction()            {}
func (Navigate) isAction()        {}
func (PickDay) isAction()         {}
func (PickMaster) isAction()      {}
func (PickTime) isAction()        {}
func (PickAppointment) isAction() {}
func (Back) isAction()            {}
func (ConfirmCancel) isAction()   {}

// NavigateTo возвращает переход на месяц со сдвигом delta, с переносом через границу года
func NavigateTo(year int, month time.Month, delta int) Navigate {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return Navigate{Year: t.Year(), Month: t.Month()}
}

// Day возвращает выбор дня по календарной дате
func Day(year int, month time.Month, day int) PickDay {
	return PickDay{Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ISODate возвращает дату в формате YYYY-MM-DD
func (p PickDay) ISODate() string {
	return p.Date.Format(dateLayout)
}

// Encode кодирует действие в callback data
func Encode(a Action) string {
	switch v := a.(type) {
	case Noop:
		return tagNoop
	case Navigate:
		return join(tagNavigate, strconv.Itoa(v.Year), strconv.Itoa(int(v.Month)))
	case PickDay:
		return join(tagPickDay, v.ISODate())
	case PickMaster:
		return join(tagMaster, strconv.FormatInt(v.MasterID, 10))
	case PickTime:
		return join(tagTime, v.Time)
	case PickAppointment:
		return join(tagAppointment, strconv.FormatInt(v.AppointmentID, 10))
	case Back:
		return tagBack
	case ConfirmCancel:
		return join(tagCancel, strconv.FormatInt(v.AppointmentID, 10))
	default:
		panic(fmt.Sprintf("action: unknown action type %T", a))
	}
}

// Decode разбирает callback data; неизвестные и поврежденные токены дают ErrInvalidCallback
func Decode(data string) (Action, error) {
	parts := strings.Split(data, separator)
	tag, args := parts[0], parts[1:]

	switch tag {
	case tagNoop:
		return Noop{}, expectArgs(data, args, 0)
	case tagBack:
		return Back{}, expectArgs(data, args, 0)
	case tagCancel:
		if err := expectArgs(data, args, 1); err != nil {
			return nil, err
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, invalid(data, err)
		}
		return ConfirmCancel{AppointmentID: id}, nil
	case tagNavigate:
		if err := expectArgs(data, args, 2); err != nil {
			return nil, err
		}
		year, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, invalid(data, err)
		}
		month, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, invalid(data, err)
		}
		if month < 1 || month > 12 {
			return nil, invalid(data, fmt.Errorf("month %d out of range", month))
		}
		return Navigate{Year: year, Month: time.Month(month)}, nil
	case tagPickDay:
		if err := expectArgs(data, args, 1); err != nil {
			return nil, err
		}
		d, err := time.Parse(dateLayout, args[0])
		if err != nil {
			return nil, invalid(data, err)
		}
		return PickDay{Date: d}, nil
	case tagMaster:
		if err := expectArgs(data, args, 1); err != nil {
			return nil, err
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, invalid(data, err)
		}
		return PickMaster{MasterID: id}, nil
	case tagTime:
		if err := expectArgs(data, args, 1); err != nil {
			return nil, err
		}
		if _, err := time.Parse("15:04", args[0]); err != nil {
			return nil, invalid(data, err)
		}
		return PickTime{Time: args[0]}, nil
	case tagAppointment:
		if err := expectArgs(data, args, 1); err != nil {
			return nil, err
		}
		id, err := parseID(args[0])
		if err != nil {
			return nil, invalid(data, err)
		}
		return PickAppointment{AppointmentID: id}, nil
	default:
		return nil, invalid(data, fmt.Errorf("unknown tag %q", tag))
	}
}

func join(tag string, params ...string) string {
	return tag + separator + strings.Join(params, separator)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}

func expectArgs(data string, args []string, n int) error {
	if len(args) != n {
		return invalid(data, fmt.Errorf("expected %d parameters, got %d", n, len(args)))
	}
	return nil
}

func invalid(data string, err error) error {
	return errors.ErrInvalidCallback.
		WithContext(map[string]interface{}{"data": data}).
		WithError(err)
}
