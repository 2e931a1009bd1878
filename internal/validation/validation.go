package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegram_booking_bot/pkg/errors"
)

// Регулярные выражения для валидации
var (
	slotListRegex = regexp.MustCompile(`^\d{1,2}[.:]\d{2}(\s*,\s*\d{1,2}[.:]\d{2})*$`)
	slotRegex     = regexp.MustCompile(`^(\d{1,2})[.:](\d{2})$`)
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// SlotListHint - подсказка по формату ввода слотов
const SlotListHint = "Неверный формат. Введите время через запятую, например: 13.00,14.30"

// ParseSlotList разбирает список времен вида "13.00, 9:30" в нормализованные строки HH:MM
func ParseSlotList(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if !slotListRegex.MatchString(text) {
		return nil, errors.ErrInvalidSlotList.WithContext(map[string]interface{}{
			"input": text,
		})
	}

	parts := strings.Split(text, ",")
	slots := make([]string, 0, len(parts))
	for _, part := range parts {
		slot, err := ParseTime(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.ErrInvalidSlotList.WithError(err).WithContext(map[string]interface{}{
				"input": text,
				"token": part,
			})
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// ParseTime разбирает время вида H:MM или H.MM и возвращает HH:MM
func ParseTime(timeStr string) (string, error) {
	m := slotRegex.FindStringSubmatch(timeStr)
	if m == nil {
		return "", errors.ErrInvalidTime.WithContext(map[string]interface{}{
			"time":   timeStr,
			"reason": "время должно быть в формате ЧЧ:ММ или ЧЧ.ММ",
		})
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", errors.ErrInvalidTime.WithContext(map[string]interface{}{
			"time":   timeStr,
			"reason": "часы 0-23, минуты 0-59",
		})
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ValidateDate валидирует дату в формате YYYY-MM-DD
func ValidateDate(dateStr string) (time.Time, error) {
	if !dateRegex.MatchString(dateStr) {
		return time.Time{}, errors.ErrInvalidDate.WithContext(map[string]interface{}{
			"date":   dateStr,
			"reason": "дата должна быть в формате YYYY-MM-DD",
		})
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
			"date": dateStr,
		})
	}

	return date, nil
}

// ParseAddMasterArgs разбирает аргументы команды /addmaster <tg_id> <Имя>.
// Имя может состоять из нескольких слов.
func ParseAddMasterArgs(args []string) (int64, string, error) {
	if len(args) < 2 {
		return 0, "", errors.ErrInvalidArguments.WithContext(map[string]interface{}{
			"args": args,
		})
	}

	tgID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, "", errors.ErrInvalidArguments.WithError(err).WithContext(map[string]interface{}{
			"tg_id": args[0],
		})
	}
	if err := ValidateChatID(tgID); err != nil {
		return 0, "", err
	}

	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if name == "" {
		return 0, "", errors.ErrInvalidArguments.WithContext("имя мастера не может быть пустым")
	}
	if len([]rune(name)) > 100 {
		return 0, "", errors.ErrInvalidArguments.WithContext("имя мастера слишком длинное (максимум 100 символов)")
	}

	return tgID, name, nil
}

// ValidateChatID валидирует Telegram Chat ID
func ValidateChatID(chatID int64) error {
	if chatID <= 0 {
		return errors.ErrInvalidArguments.WithContext(map[string]interface{}{
			"chat_id": chatID,
			"reason":  "ID пользователя должен быть положительным числом",
		})
	}
	return nil
}
