// Package calendar строит inline-календарь месяца для выбора даты.
package calendar

import (
	"fmt"
	"strconv"
	"time"

	"telegram_booking_bot/internal/bot/action"
	"telegram_booking_bot/internal/bot/keyboard"
)

const daysInWeek = 7

// Mode определяет, какие дни календаря можно выбрать
type Mode int

const (
	// PickFree - выбираются только дни вне отмеченного множества (запись, добавление слотов)
	PickFree Mode = iota
	// PickMarked - выбираются только отмеченные дни (удаление записей)
	PickMarked
)

var weekdayLabels = [daysInWeek]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Подписи навигации
const (
	prevLabel  = "◀"
	nextLabel  = "▶"
	blankLabel = " "
)

// DateSet - множество дат в формате YYYY-MM-DD
type DateSet map[string]struct{}

// NewDateSet создает множество из списка дат
func NewDateSet(dates ...string) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

// Add добавляет дату
func (s DateSet) Add(date string) {
	s[date] = struct{}{}
}

// Has проверяет наличие даты; nil-множество пусто
func (s DateSet) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// Build строит сетку календаря на месяц.
// Строки: навигация, дни недели, недели месяца по 7 ячеек, кнопка "Назад".
func Build(year int, month time.Month, marked DateSet, mode Mode) keyboard.Inline {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	grid := keyboard.Inline{
		headerRow(year, month),
		weekdayRow(),
	}

	// Понедельник = 0
	offset := (int(first.Weekday()) + 6) % daysInWeek

	row := make([]keyboard.Button, 0, daysInWeek)
	for i := 0; i < offset; i++ {
		row = append(row, keyboard.Label(blankLabel))
	}

	for day := 1; day <= daysInMonth; day++ {
		row = append(row, dayCell(year, month, day, marked, mode))
		if len(row) == daysInWeek {
			grid = append(grid, row)
			row = make([]keyboard.Button, 0, daysInWeek)
		}
	}

	if len(row) > 0 {
		for len(row) < daysInWeek {
			row = append(row, keyboard.Label(blankLabel))
		}
		grid = append(grid, row)
	}

	return append(grid, keyboard.Row(keyboard.BackButton()))
}

func headerRow(year int, month time.Month) []keyboard.Button {
	return keyboard.Row(
		keyboard.Button{Text: prevLabel, Action: action.NavigateTo(year, month, -1)},
		keyboard.Label(fmt.Sprintf("%d/%d", int(month), year)),
		keyboard.Button{Text: nextLabel, Action: action.NavigateTo(year, month, 1)},
	)
}

func weekdayRow() []keyboard.Button {
	row := make([]keyboard.Button, 0, daysInWeek)
	for _, wd := range weekdayLabels {
		row = append(row, keyboard.Label(wd))
	}
	return row
}

func dayCell(year int, month time.Month, day int, marked DateSet, mode Mode) keyboard.Button {
	pick := action.Day(year, month, day)
	isMarked := marked.Has(pick.ISODate())
	text := strconv.Itoa(day)

	switch mode {
	case PickMarked:
		if isMarked {
			return keyboard.Button{Text: text, Action: pick}
		}
		return keyboard.Label(text)
	default:
		if isMarked {
			return keyboard.Label("~" + text + "~")
		}
		return keyboard.Button{Text: text, Action: pick}
	}
}

// MonthRange возвращает первый и последний день месяца в формате YYYY-MM-DD
func MonthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02")
}
