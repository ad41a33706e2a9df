package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TimeoutOption — сигнальное значение selected_option, когда игрок не успел ответить
const TimeoutOption = -1

// AnswerGraceMs — сетевой допуск к дедлайну вопроса (серверная проверка просрочки)
const AnswerGraceMs = 2000

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет один вопрос сессии.
// После создания вопрос неизменяем, кроме started_at — оно
// устанавливается ровно один раз при активации вопроса.
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	SessionID     uint        `gorm:"not null;index;uniqueIndex:idx_session_position" json:"session_id"`
	Position      int         `gorm:"not null;uniqueIndex:idx_session_position" json:"position"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	Options       StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectOption int         `gorm:"not null" json:"-"` // Скрыто от клиента
	TimeLimitSec  int         `gorm:"not null;default:30" json:"time_limit_sec"`
	PointValue    int         `gorm:"not null;default:100" json:"point_value"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет, является ли выбранный вариант правильным.
// Сигнальное значение таймаута правильным не считается никогда.
func (q *Question) IsCorrect(selectedOption int) bool {
	if selectedOption == TimeoutOption {
		return false
	}
	return selectedOption == q.CorrectOption
}

// IsValidOption проверяет, что выбранный вариант допустим:
// либо валидный индекс варианта, либо сигнальное значение таймаута
func (q *Question) IsValidOption(selectedOption int) bool {
	if selectedOption == TimeoutOption {
		return true
	}
	return selectedOption >= 0 && selectedOption < len(q.Options)
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsStarted проверяет, был ли вопрос активирован
func (q *Question) IsStarted() bool {
	return q.StartedAt != nil
}

// DeadlineMs возвращает дедлайн вопроса в Unix ms (0, если вопрос не активирован)
func (q *Question) DeadlineMs() int64 {
	if q.StartedAt == nil {
		return 0
	}
	return q.StartedAt.UnixMilli() + int64(q.TimeLimitSec)*1000
}

// RemainingMs возвращает оставшееся время вопроса на момент nowMs (Unix ms).
// Чистая функция от started_at и time_limit — все клиенты, считающие от
// одного снапшота, получают одинаковое значение независимо от локальных таймеров.
func (q *Question) RemainingMs(nowMs int64) int64 {
	if q.StartedAt == nil {
		return 0
	}
	remaining := q.DeadlineMs() - nowMs
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired проверяет, истек ли дедлайн вопроса (с сетевым допуском)
func (q *Question) IsExpired(nowMs int64) bool {
	if q.StartedAt == nil {
		return false
	}
	return nowMs > q.DeadlineMs()+AnswerGraceMs
}

// CalculatePoints рассчитывает очки за ответ.
// Неправильный ответ и таймаут дают 0. Правильный ответ дает
// point_value, линейно убывающий со временем до половины point_value
// на дедлайне: points = ceil(pv * (2L - t) / 2L), t ограничен [0, L].
// Более быстрый правильный ответ никогда не дает меньше очков, чем медленный.
func (q *Question) CalculatePoints(isCorrect bool, responseTimeMs int64) int {
	if !isCorrect {
		return 0
	}

	limitMs := int64(q.TimeLimitSec) * 1000
	if limitMs <= 0 {
		return q.PointValue
	}

	t := responseTimeMs
	if t < 0 {
		t = 0
	}
	if t > limitMs {
		t = limitMs
	}

	numerator := int64(q.PointValue) * (2*limitMs - t)
	denominator := 2 * limitMs
	// Округляем вверх: мгновенный ответ дает ровно point_value,
	// ответ на дедлайне — не меньше половины
	return int((numerator + denominator - 1) / denominator)
}
