package postgres

import (
	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store reacts to.
const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// translate marks driver errors with the core sentinel they correspond to.
// The driver message is kept so MapError can still pattern-match it.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Mark(err, notFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return errors.Mark(err, core.ErrProductNotFound)
		case codeCheckViolation:
			return errors.Mark(err, core.ErrInvalidQuantity)
		}
	}
	return err
}
