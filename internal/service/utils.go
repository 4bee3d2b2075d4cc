package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// notFound rewrites pgx.ErrNoRows to the given sentinel and leaves other errors wrapped.
func notFound(err error, sentinel error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", operation, err)
}
