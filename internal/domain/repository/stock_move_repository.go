package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockMoveRepository define el puerto de persistencia del libro de movimientos (DIP).
// El libro es append-only: no hay Update ni Delete.
type StockMoveRepository interface {
	Create(ctx context.Context, move *entity.StockMove) error
	GetByID(ctx context.Context, id string) (*entity.StockMove, error)
	ListByWarehouse(ctx context.Context, warehouseID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error)
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error)
}
