package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок аутентификации (неверный или истекший токен).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда действие доступно только ведущему сессии.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния: повторный ответ на тот
	// же вопрос, повторный advance той же позиции. Для клиента это не фатальная
	// ошибка — состояние уже такое, каким он его хотел сделать.
	ErrConflict = errors.New("resource state conflict")

	// ErrStaleState используется, когда действие адресовано вопросу или сессии,
	// которые уже ушли вперед (вопрос сменился, сессия завершена). Клиенту
	// следует перечитать снапшот, а не показывать ошибку.
	ErrStaleState = errors.New("stale session state")
)
