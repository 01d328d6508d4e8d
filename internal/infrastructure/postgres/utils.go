package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// isCheckViolation verifica si un error es una violación de CHECK constraint (23514).
// Los CHECK de stock_levels (quantity >= 0, reserved <= quantity) son el respaldo
// a nivel de storage de los predicados condicionales del repositorio.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514" // check_violation
	}
	return strings.Contains(err.Error(), "23514")
}
