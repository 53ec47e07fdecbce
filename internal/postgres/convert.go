package postgres

// convert.go moves values between Go types and nullable pgtype columns.
// Empty strings are stored as NULL; NULL columns read back as zero values.

import (
	"math"
	"strings"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgtype"
)

// toPgText returns an invalid Text for empty or whitespace-only input.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func fromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func fromPgInt4(n pgtype.Int4) int {
	if !n.Valid {
		return 0
	}
	return int(n.Int32)
}

// toQuantity narrows a quantity to the int4 column type. Values outside
// [0, MaxInt32] are rejected rather than wrapped.
func toQuantity(n int) (int32, error) {
	if n < 0 || n > math.MaxInt32 {
		return 0, errors.Wrapf(core.ErrInvalidQuantity, "quantity %d out of range", n)
	}
	return int32(n), nil
}
