package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNoRowsAffected возвращается, когда UPDATE не нашёл подходящей строки
var ErrNoRowsAffected = errors.New("no rows affected")

// IsUniqueViolation распознаёт конфликт уникального индекса Postgres (код 23505).
// Используется сервисом версий для повтора выделения номера версии при гонке.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
