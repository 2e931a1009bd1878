package flow

import (
	"encoding/json"
	"fmt"

	"telegram_booking_bot/pkg/errors"
)

// Названия диалогов для метрик и логов
const (
	FlowBooking      = "booking"
	FlowDeletion     = "deletion"
	FlowAvailability = "availability"
)

// State - состояние диалога пользователя. Каждое состояние несет ровно те поля,
// которые гарантированно собраны к этому шагу.
type State interface {
	Flow() string
	kind() string
}

// prompted - шаг, управляемый кнопками одного сообщения. Prompt хранит
// идентификатор этого сообщения; 0 означает, что сообщение неизвестно.
type prompted interface {
	promptID() int
}

// BookingSelectMaster - клиент выбирает мастера
type BookingSelectMaster struct {
	Prompt int `json:"prompt,omitempty"`
}

// BookingSelectDate - клиент выбирает дату в календаре мастера
type BookingSelectDate struct {
	MasterID int64 `json:"master_id"`
	Prompt   int   `json:"prompt,omitempty"`
}

// BookingSelectTime - клиент выбирает свободное время
type BookingSelectTime struct {
	MasterID int64  `json:"master_id"`
	Date     string `json:"date"`
	Prompt   int    `json:"prompt,omitempty"`
}

// BookingEnterName - ожидается имя клиента
type BookingEnterName struct {
	MasterID int64  `json:"master_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// BookingEnterPhone - ожидается телефон клиента
type BookingEnterPhone struct {
	MasterID int64  `json:"master_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Name     string `json:"name"`
}

// DeletionSelectDate - мастер выбирает дату с записями
type DeletionSelectDate struct {
	MasterID int64 `json:"master_id"`
	Prompt   int   `json:"prompt,omitempty"`
}

// DeletionSelectAppointment - мастер выбирает запись для удаления
type DeletionSelectAppointment struct {
	MasterID int64  `json:"master_id"`
	Date     string `json:"date"`
	Prompt   int    `json:"prompt,omitempty"`
}

// AvailabilitySelectDate - мастер выбирает дату для новых слотов
type AvailabilitySelectDate struct {
	MasterID int64 `json:"master_id"`
	Prompt   int   `json:"prompt,omitempty"`
}

// AvailabilityEnterSlots - ожидается список времен через запятую
type AvailabilityEnterSlots struct {
	MasterID int64  `json:"master_id"`
	Date     string `json:"date"`
}

func (BookingSelectMaster) Flow() string       { return FlowBooking }
func (BookingSelectDate) Flow() string         { return FlowBooking }
func (BookingSelectTime) Flow() string         { return FlowBooking }
func (BookingEnterName) Flow() string          { return FlowBooking }
func (BookingEnterPhone) Flow() string         { return FlowBooking }
func (DeletionSelectDate) Flow() string        { return FlowDeletion }
func (DeletionSelectAppointment) Flow() string { return FlowDeletion }
func (AvailabilitySelectDate) Flow() string    { return FlowAvailability }
func (AvailabilityEnterSlots) Flow() string    { return FlowAvailability }

func (BookingSelectMaster) kind() string       { return "booking.select_master" }
func (BookingSelectDate) kind() string         { return "booking.select_date" }
func (BookingSelectTime) kind() string         { return "booking.select_time" }
func (BookingEnterName) kind() string          { return "booking.enter_name" }
func (BookingEnterPhone) kind() string         { return "booking.enter_phone" }
func (DeletionSelectDate) kind() string        { return "deletion.select_date" }
func (DeletionSelectAppointment) kind() string { return "deletion.select_appointment" }
func (AvailabilitySelectDate) kind() string    { return "availability.select_date" }
func (AvailabilityEnterSlots) kind() string    { return "availability.enter_slots" }

func (s BookingSelectMaster) promptID() int       { return s.Prompt }
func (s BookingSelectDate) promptID() int         { return s.Prompt }
func (s BookingSelectTime) promptID() int         { return s.Prompt }
func (s DeletionSelectDate) promptID() int        { return s.Prompt }
func (s DeletionSelectAppointment) promptID() int { return s.Prompt }
func (s AvailabilitySelectDate) promptID() int    { return s.Prompt }

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalState сериализует состояние для внешнего хранилища сессий
func MarshalState(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.ErrSession.WithError(fmt.Errorf("failed to marshal state: %w", err))
	}
	return json.Marshal(envelope{Kind: s.kind(), Data: data})
}

// UnmarshalState восстанавливает состояние, сохраненное MarshalState
func UnmarshalState(raw []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.ErrSession.WithError(fmt.Errorf("failed to unmarshal envelope: %w", err))
	}

	var (
		s   State
		err error
	)
	switch env.Kind {
	case BookingSelectMaster{}.kind():
		s, err = decode[BookingSelectMaster](env.Data)
	case BookingSelectDate{}.kind():
		s, err = decode[BookingSelectDate](env.Data)
	case BookingSelectTime{}.kind():
		s, err = decode[BookingSelectTime](env.Data)
	case BookingEnterName{}.kind():
		s, err = decode[BookingEnterName](env.Data)
	case BookingEnterPhone{}.kind():
		s, err = decode[BookingEnterPhone](env.Data)
	case DeletionSelectDate{}.kind():
		s, err = decode[DeletionSelectDate](env.Data)
	case DeletionSelectAppointment{}.kind():
		s, err = decode[DeletionSelectAppointment](env.Data)
	case AvailabilitySelectDate{}.kind():
		s, err = decode[AvailabilitySelectDate](env.Data)
	case AvailabilityEnterSlots{}.kind():
		s, err = decode[AvailabilityEnterSlots](env.Data)
	default:
		return nil, errors.ErrSession.WithContext(map[string]interface{}{"kind": env.Kind})
	}
	if err != nil {
		return nil, errors.ErrSession.WithError(fmt.Errorf("failed to unmarshal %s: %w", env.Kind, err))
	}

	return s, nil
}

func decode[T State](data json.RawMessage) (State, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
