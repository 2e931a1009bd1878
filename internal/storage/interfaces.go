package storage

import (
	"context"

	"telegram_booking_bot/internal/storage/models"
)

// Порядок сортировки записей
type AppointmentOrder int

const (
	// OrderByDateTime сортирует по дате и времени по возрастанию
	OrderByDateTime AppointmentOrder = iota
	// OrderByCreatedDesc сортирует по времени создания, новые первыми
	OrderByCreatedDesc
)

// AppointmentFilter задает условия выборки записей; нулевые поля не фильтруют
type AppointmentFilter struct {
	MasterID int64
	UserID   int64
	Date     string
	From     string // включительно
	To       string // включительно
	Order    AppointmentOrder
	Limit    int
}

// AvailabilityFilter задает условия выборки слотов; нулевые поля не фильтруют
type AvailabilityFilter struct {
	MasterID int64
	Date     string
	From     string
	To       string
}

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	GetUser(ctx context.Context, tgID int64) (*models.User, error)
	SaveUser(ctx context.Context, tgID int64, role string) (created bool, err error)
}

// MasterRepository определяет интерфейс для работы с мастерами
type MasterRepository interface {
	GetMaster(ctx context.Context, id int64) (*models.Master, error)
	GetMasterByTgID(ctx context.Context, tgID int64) (*models.Master, error)
	ListMasters(ctx context.Context) ([]*models.Master, error)
	CreateMaster(ctx context.Context, tgID int64, name string) (*models.Master, error)
}

// AppointmentRepository определяет интерфейс для работы с записями
type AppointmentRepository interface {
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]*models.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	DeleteAppointment(ctx context.Context, id int64) error
}

// AvailabilityRepository определяет интерфейс для работы со слотами доступности
type AvailabilityRepository interface {
	ListAvailability(ctx context.Context, filter AvailabilityFilter) ([]*models.Availability, error)
	CreateAvailability(ctx context.Context, slot *models.Availability) error
}

// Repository объединяет все репозитории, с которыми работают диалоги
type Repository interface {
	UserRepository
	MasterRepository
	AppointmentRepository
	AvailabilityRepository
}

// Storage добавляет управление подключением
type Storage interface {
	Repository
	Close() error
	Ping(ctx context.Context) error
}
