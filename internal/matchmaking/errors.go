package matchmaking

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrConflictLost     = errors.New("pairing conflict lost")
	ErrStoreUnavailable = errors.New("room store unavailable")
	ErrCacheUnavailable = errors.New("match cache unavailable")
	ErrQueueUnavailable = errors.New("wait queue unavailable")
	ErrInvalidPairing   = errors.New("room cannot be paired with itself")
)

// ValidationError описывает отсутствующее или некорректное поле запроса.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func missing(field string) error {
	return &ValidationError{Field: field}
}

// IsValidation сообщает, является ли ошибка ошибкой валидации запроса.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
