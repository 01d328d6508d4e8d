package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockLevelRepository define el puerto para consultar/actualizar saldos por
// producto+bodega (DIP). Las mutaciones son sentencias condicionales: el WHERE
// revalida el invariante al momento de escribir, de modo que dos llamadas
// concurrentes no puedan pasar ambas una verificación obsoleta.
type StockLevelRepository interface {
	// Get devuelve el saldo o nil si no existe fila para el par.
	Get(ctx context.Context, productID, warehouseID string) (*entity.StockLevel, error)

	// GetForUpdate bloquea la fila (SELECT ... FOR UPDATE) y la devuelve.
	// Si no existe, devuelve una fila en cero sin bloquear nada.
	GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.StockLevel, error)

	// ApplyDelta suma delta a la cantidad con un upsert aditivo condicional:
	// inserta la fila si no existe, y solo actualiza si la cantidad resultante
	// no queda por debajo de la reserva vigente. Cero filas afectadas se
	// traduce a domain.ErrInsufficientStock.
	ApplyDelta(ctx context.Context, productID, warehouseID string, delta decimal.Decimal) (*entity.StockLevel, error)

	// Reserve incrementa la reserva solo si reserved + qty <= quantity
	// (UPDATE condicional). Cero filas afectadas (fila ausente o sin
	// disponibilidad) se traduce a domain.ErrInsufficientStock.
	Reserve(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error)

	// ReleaseReservation decrementa la reserva con piso en cero (GREATEST).
	// Si la fila no existe devuelve domain.ErrNotFound.
	ReleaseReservation(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error)

	ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.StockLevel, error)
	ListByProduct(ctx context.Context, productID string) ([]*entity.StockLevel, error)
}
