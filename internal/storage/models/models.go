package models

import "time"

// Роли пользователей
const (
	RoleClient = "client"
	RoleMaster = "master"
)

// Форматы хранения даты и времени
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// User представляет пользователя Telegram
type User struct {
	TgID      int64     `json:"tg_id" db:"tg_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Master представляет мастера, к которому записываются клиенты
type Master struct {
	ID        int64     `json:"id" db:"id"`
	TgID      int64     `json:"tg_id" db:"tg_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Appointment представляет запись клиента к мастеру
type Appointment struct {
	ID          int64     `json:"id" db:"id"`
	MasterID    int64     `json:"master_id" db:"master_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ClientName  string    `json:"client_name" db:"client_name"`
	ClientPhone string    `json:"client_phone" db:"client_phone"`
	Date        string    `json:"date" db:"date"`
	Time        *string   `json:"time,omitempty" db:"time"` // nil у старых записей только с датой
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// HasTime проверяет, что у записи указано время
func (a *Appointment) HasTime() bool {
	return a.Time != nil && *a.Time != ""
}

// GetFormattedTime возвращает время или прочерк для записей без времени
func (a *Appointment) GetFormattedTime() string {
	if !a.HasTime() {
		return "—"
	}
	return *a.Time
}

// GetFormattedDateTime возвращает отформатированные дату и время
func (a *Appointment) GetFormattedDateTime() string {
	return a.Date + " в " + a.GetFormattedTime()
}

// Availability представляет свободный слот мастера
type Availability struct {
	ID       int64  `json:"id" db:"id"`
	MasterID int64  `json:"master_id" db:"master_id"`
	Date     string `json:"date" db:"date"`
	Time     string `json:"time" db:"time"`
}
