package flow

// Тексты сообщений бота
const (
	textWelcomeClient   = "Здравствуйте! Это бот онлайн-записи."
	textWelcomeMaster   = "Привет, мастер %s!"
	textYourID          = "Ваш Telegram ID: %d"
	textPressStart      = "Пожалуйста, нажмите /start, чтобы начать."
	textUseButtons      = "Пожалуйста, воспользуйтесь кнопками под сообщением или нажмите «↩ Назад»."
	textUnknownCommand  = "Неизвестная команда."
	textGenericError    = "Произошла ошибка. Попробуйте позже."
	textSessionExpired  = "Сессия устарела, начните заново."
	textInvalidChoice   = "Неверный выбор"
	textStaleKeyboard   = "Это меню устарело, воспользуйтесь последним сообщением."
	textCancelled       = "Отмена."
	textBackToMain      = "Главное меню."
	textBackToMaster    = "Возвращаемся в меню мастера."
	textMastersOnly     = "❌ Эта функция доступна только мастерам."
	textNoPermission    = "❌ У вас нет прав для этой команды."
	textAddMasterUsage  = "Использование: /addmaster <tg_id> <Имя>"
	textMasterAdded     = "✅ Мастер %s добавлен."
	textContactsMasters = "Мастера:"

	textNoMasters        = "Пока нет доступных мастеров."
	textSelectMaster     = "Выберите мастера:"
	textMasterNotFound   = "Мастер не найден."
	textSelectDate       = "Выберите дату:"
	textDatePassed       = "Эта дата уже прошла"
	textSelectTime       = "Выберите время:"
	textNoFreeTime       = "На эту дату нет свободного времени."
	textTimeTaken        = "Это время уже занято"
	textEnterName        = "Введите ваше имя:"
	textEnterPhone       = "Введите телефон:"
	textBookingSaved     = "Ваша запись сохранена!\n%s в %s, мастер %s"
	textBookingFailed    = "Не удалось сохранить запись. Попробуйте позже."
	textNotifyNewBooking = "Новая запись:\n%s, %s\n%s в %s"

	textNoBooking         = "Записи нет."
	textMyBooking         = "%s в %s - %s, %s"
	textNothingToCancel   = "Нечего отменять."
	textCurrentBooking    = "Текущая запись: %s"
	textBookingCancelled  = "Запись отменена."
	textCancelGone        = "Эта запись уже отменена."
	textNotifyClientGone  = "Клиент %s отменил запись на %s."
	textCancelFailed      = "Не удалось отменить запись. Попробуйте позже."
	textNotifyMasterGone  = "Ваша запись на %s отменена мастером."
	textNothingToDelete   = "Нет записей для удаления."
	textSelectDeleteDate  = "Выберите дату записи для удаления:"
	textNoAppointmentsDay = "На эту дату нет записей."
	textSelectAppointment = "Выберите запись для удаления:"
	textAppointmentGone   = "Запись не найдена."
	textAppointmentDelete = "Запись на %s удалена."

	textSelectSlotDate = "Выберите дату для добавления слотов:"
	textEnterSlots     = "Дата %s. Введите слоты в формате 13.00,14.30:"
	textSlotsSaved     = "Слоты сохранены для %s."
	textSlotsFailed    = "Не удалось сохранить слоты. Попробуйте ещё раз."

	textNoSlots        = "Нет добавленных слотов или записей."
	textNoAppointments = "Записей нет."
)
