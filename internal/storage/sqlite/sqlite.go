package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"telegram_booking_bot/internal/storage"
	"telegram_booking_bot/internal/storage/models"
	"telegram_booking_bot/pkg/errors"
	"telegram_booking_bot/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// New создает новое подключение к SQLite базе данных
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает только одно write-подключение, а :memory: живет в пределах соединения
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			tg_id INTEGER PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'client',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS masters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tg_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(tg_id) REFERENCES users(tg_id)
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			master_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			client_name TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			time TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(master_id) REFERENCES masters(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS availabilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			master_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			FOREIGN KEY(master_id) REFERENCES masters(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_master_date ON appointments(master_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_user ON appointments(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_availabilities_master_date ON availabilities(master_id, date)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser получает пользователя по Telegram ID
func (s *SQLiteStorage) GetUser(ctx context.Context, tgID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT tg_id, role, created_at FROM users WHERE tg_id = ?`

	err := s.db.QueryRowContext(ctx, query, tgID).Scan(&user.TgID, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound.WithContext(map[string]interface{}{"tg_id": tgID})
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get user: %w", err))
	}

	return user, nil
}

// SaveUser регистрирует пользователя; роль мастера повышает роль уже существующего клиента
func (s *SQLiteStorage) SaveUser(ctx context.Context, tgID int64, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (tg_id, role) VALUES (?, ?) ON CONFLICT(tg_id) DO NOTHING`,
		tgID, role)
	metrics.RecordDatabaseOperation("insert", "users", err)
	if err != nil {
		return false, errors.ErrDatabase.WithError(fmt.Errorf("failed to save user: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.ErrDatabase.WithError(fmt.Errorf("failed to get affected rows: %w", err))
	}
	if affected > 0 {
		return true, nil
	}

	if role == models.RoleMaster {
		_, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE tg_id = ?`, role, tgID)
		metrics.RecordDatabaseOperation("update", "users", err)
		if err != nil {
			return false, errors.ErrDatabase.WithError(fmt.Errorf("failed to update user role: %w", err))
		}
	}

	return false, nil
}

const masterColumns = `id, tg_id, name, created_at`

func scanMaster(row interface{ Scan(...interface{}) error }) (*models.Master, error) {
	m := &models.Master{}
	if err := row.Scan(&m.ID, &m.TgID, &m.Name, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMaster получает мастера по ID
func (s *SQLiteStorage) GetMaster(ctx context.Context, id int64) (*models.Master, error) {
	m, err := scanMaster(s.db.QueryRowContext(ctx,
		`SELECT `+masterColumns+` FROM masters WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrMasterNotFound.WithContext(map[string]interface{}{"master_id": id})
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get master: %w", err))
	}
	return m, nil
}

// GetMasterByTgID получает мастера по Telegram ID владельца
func (s *SQLiteStorage) GetMasterByTgID(ctx context.Context, tgID int64) (*models.Master, error) {
	m, err := scanMaster(s.db.QueryRowContext(ctx,
		`SELECT `+masterColumns+` FROM masters WHERE tg_id = ?`, tgID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrMasterNotFound.WithContext(map[string]interface{}{"tg_id": tgID})
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get master by tg_id: %w", err))
	}
	return m, nil
}

// ListMasters возвращает всех мастеров в порядке добавления
func (s *SQLiteStorage) ListMasters(ctx context.Context) ([]*models.Master, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+masterColumns+` FROM masters ORDER BY id`)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to list masters: %w", err))
	}
	defer rows.Close()

	var masters []*models.Master
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan master: %w", err))
		}
		masters = append(masters, m)
	}

	return masters, rows.Err()
}

// CreateMaster создает мастера или обновляет имя существующего; пользователь должен быть зарегистрирован
func (s *SQLiteStorage) CreateMaster(ctx context.Context, tgID int64, name string) (*models.Master, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO masters (tg_id, name) VALUES (?, ?)
		 ON CONFLICT(tg_id) DO UPDATE SET name = excluded.name`,
		tgID, name)
	metrics.RecordDatabaseOperation("upsert", "masters", err)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to create master: %w", err))
	}

	return s.GetMasterByTgID(ctx, tgID)
}

const appointmentColumns = `id, master_id, user_id, client_name, client_phone, date, time, created_at`

func scanAppointment(row interface{ Scan(...interface{}) error }) (*models.Appointment, error) {
	a := &models.Appointment{}
	var t sql.NullString
	if err := row.Scan(&a.ID, &a.MasterID, &a.UserID, &a.ClientName, &a.ClientPhone, &a.Date, &t, &a.CreatedAt); err != nil {
		return nil, err
	}
	if t.Valid {
		a.Time = &t.String
	}
	return a, nil
}

// ListAppointments возвращает записи по фильтру
func (s *SQLiteStorage) ListAppointments(ctx context.Context, filter storage.AppointmentFilter) ([]*models.Appointment, error) {
	var conds []string
	var args []interface{}

	if filter.MasterID != 0 {
		conds = append(conds, "master_id = ?")
		args = append(args, filter.MasterID)
	}
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	switch filter.Order {
	case storage.OrderByCreatedDesc:
		query += ` ORDER BY created_at DESC, id DESC`
	default:
		query += ` ORDER BY date, time, id`
	}

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to list appointments: %w", err))
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan appointment: %w", err))
		}
		appts = append(appts, a)
	}

	return appts, rows.Err()
}

// GetAppointment получает запись по ID
func (s *SQLiteStorage) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	a, err := scanAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAppointmentNotFound.WithContext(map[string]interface{}{"appointment_id": id})
		}
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to get appointment: %w", err))
	}
	return a, nil
}

// CreateAppointment создает запись; записи без времени больше не принимаются
func (s *SQLiteStorage) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if !appt.HasTime() {
		return errors.ErrMissingTime.WithContext(map[string]interface{}{
			"master_id": appt.MasterID,
			"date":      appt.Date,
		})
	}

	createdAt := time.Now().UTC().Truncate(time.Second)
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (master_id, user_id, client_name, client_phone, date, time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		appt.MasterID, appt.UserID, appt.ClientName, appt.ClientPhone, appt.Date, *appt.Time,
		createdAt.Format("2006-01-02 15:04:05"))
	metrics.RecordDatabaseOperation("insert", "appointments", err)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to create appointment: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to get appointment ID: %w", err))
	}

	appt.ID = id
	appt.CreatedAt = createdAt
	return nil
}

// DeleteAppointment удаляет запись по ID
func (s *SQLiteStorage) DeleteAppointment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	metrics.RecordDatabaseOperation("delete", "appointments", err)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to delete appointment: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to get affected rows: %w", err))
	}
	if affected == 0 {
		return errors.ErrAppointmentNotFound.WithContext(map[string]interface{}{"appointment_id": id})
	}

	return nil
}

// ListAvailability возвращает слоты доступности по фильтру, упорядоченные по дате и времени
func (s *SQLiteStorage) ListAvailability(ctx context.Context, filter storage.AvailabilityFilter) ([]*models.Availability, error) {
	var conds []string
	var args []interface{}

	if filter.MasterID != 0 {
		conds = append(conds, "master_id = ?")
		args = append(args, filter.MasterID)
	}
	if filter.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT id, master_id, date, time FROM availabilities`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date, time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to list availability: %w", err))
	}
	defer rows.Close()

	var slots []*models.Availability
	for rows.Next() {
		a := &models.Availability{}
		if err := rows.Scan(&a.ID, &a.MasterID, &a.Date, &a.Time); err != nil {
			return nil, errors.ErrDatabase.WithError(fmt.Errorf("failed to scan availability: %w", err))
		}
		slots = append(slots, a)
	}

	return slots, rows.Err()
}

// CreateAvailability добавляет слот доступности без проверки на дубликаты
func (s *SQLiteStorage) CreateAvailability(ctx context.Context, slot *models.Availability) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO availabilities (master_id, date, time) VALUES (?, ?, ?)`,
		slot.MasterID, slot.Date, slot.Time)
	metrics.RecordDatabaseOperation("insert", "availabilities", err)
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to create availability: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.ErrDatabase.WithError(fmt.Errorf("failed to get availability ID: %w", err))
	}

	slot.ID = id
	return nil
}
