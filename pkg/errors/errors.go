package errors

import (
	stderrors "errors"
	"fmt"
)

// BotError представляет ошибку бота с кодом и контекстом
type BotError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *BotError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, поэтому копии из WithContext/WithError
// совпадают с исходными сентинелами
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *BotError) WithContext(ctx interface{}) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *BotError) WithError(err error) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки поиска
	ErrUserNotFound = &BotError{
		Code:    "USER_NOT_FOUND",
		Message: "пользователь не найден",
	}

	ErrMasterNotFound = &BotError{
		Code:    "MASTER_NOT_FOUND",
		Message: "мастер не найден",
	}

	ErrAppointmentNotFound = &BotError{
		Code:    "APPOINTMENT_NOT_FOUND",
		Message: "запись не найдена",
	}

	// Ошибки доступа
	ErrNotAMaster = &BotError{
		Code:    "NOT_A_MASTER",
		Message: "пользователь не является мастером",
	}

	ErrAccessDenied = &BotError{
		Code:    "ACCESS_DENIED",
		Message: "недостаточно прав",
	}

	// Ошибки валидации
	ErrInvalidDate = &BotError{
		Code:    "INVALID_DATE",
		Message: "некорректная дата",
	}

	ErrInvalidTime = &BotError{
		Code:    "INVALID_TIME",
		Message: "некорректное время",
	}

	ErrInvalidSlotList = &BotError{
		Code:    "INVALID_SLOT_LIST",
		Message: "некорректный список слотов",
	}

	ErrInvalidCallback = &BotError{
		Code:    "INVALID_CALLBACK",
		Message: "некорректные данные кнопки",
	}

	ErrInvalidArguments = &BotError{
		Code:    "INVALID_ARGUMENTS",
		Message: "некорректные аргументы команды",
	}

	ErrMissingTime = &BotError{
		Code:    "MISSING_TIME",
		Message: "у записи не указано время",
	}

	// Системные ошибки
	ErrDatabase = &BotError{
		Code:    "DATABASE",
		Message: "ошибка базы данных",
	}

	ErrConfigurationInvalid = &BotError{
		Code:    "CONFIGURATION_INVALID",
		Message: "некорректная конфигурация",
	}

	ErrTelegramAPI = &BotError{
		Code:    "TELEGRAM_API",
		Message: "ошибка Telegram API",
	}

	ErrSession = &BotError{
		Code:    "SESSION",
		Message: "ошибка хранилища сессий",
	}
)

// Is проксирует errors.Is, чтобы пакетам не приходилось импортировать оба пакета errors
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
