package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/okian/gigbook/internal/adapters/repository"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapError translates driver errors into repository sentinels.
func mapError(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", what, repository.ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: referenced record: %w", what, repository.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
