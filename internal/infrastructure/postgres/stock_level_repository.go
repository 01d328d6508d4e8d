package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockLevelRepository = (*StockLevelRepo)(nil)

// StockLevelRepo implementación de StockLevelRepository sobre PostgreSQL
// (usable con pool o tx).
type StockLevelRepo struct {
	q Querier
}

// NewStockLevelRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewStockLevelRepository(q Querier) *StockLevelRepo {
	return &StockLevelRepo{q: q}
}

const stockLevelColumns = "product_id, warehouse_id, quantity, reserved_quantity, updated_at"

func scanStockLevel(row pgx.Row) (*entity.StockLevel, error) {
	var s entity.StockLevel
	err := row.Scan(&s.ProductID, &s.WarehouseID, &s.Quantity, &s.ReservedQuantity, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get obtiene el saldo de un producto en una bodega, o nil si no existe fila.
func (r *StockLevelRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.StockLevel, error) {
	query := `
		SELECT ` + stockLevelColumns + `
		FROM stock_levels WHERE product_id = $1 AND warehouse_id = $2`
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	return s, nil
}

// GetForUpdate obtiene el saldo y bloquea la fila (SELECT FOR UPDATE).
// Si no existe fila devuelve un saldo en cero (lazy create: la fila nace con el
// primer movimiento).
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.StockLevel, error) {
	query := `
		SELECT ` + stockLevelColumns + `
		FROM stock_levels WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockLevel{
				ProductID:        productID,
				WarehouseID:      warehouseID,
				Quantity:         decimal.Zero,
				ReservedQuantity: decimal.Zero,
			}, nil
		}
		return nil, fmt.Errorf("get stock level for update: %w", err)
	}
	return s, nil
}

// ApplyDelta suma delta a la cantidad con un upsert aditivo. La suma ocurre en
// SQL (no read-modify-write en la aplicación) y el WHERE revalida el invariante
// al escribir: la cantidad resultante no puede quedar por debajo de la reserva
// (y por tanto tampoco ser negativa, porque reserved >= 0). Si el predicado no
// se cumple el upsert no afecta filas y se devuelve ErrInsufficientStock.
func (r *StockLevelRepo) ApplyDelta(ctx context.Context, productID, warehouseID string, delta decimal.Decimal) (*entity.StockLevel, error) {
	query := `
		INSERT INTO stock_levels (product_id, warehouse_id, quantity, reserved_quantity, updated_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = stock_levels.quantity + EXCLUDED.quantity, updated_at = now()
		WHERE stock_levels.quantity + EXCLUDED.quantity >= stock_levels.reserved_quantity
		RETURNING ` + stockLevelColumns
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID, warehouseID, delta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Hubo conflicto pero el predicado falló: el delta dejaría el saldo
			// por debajo de la reserva.
			return nil, domain.ErrInsufficientStock
		}
		if isCheckViolation(err) {
			// Respaldo: el CHECK de la tabla rechazó un insert negativo.
			return nil, domain.ErrInsufficientStock
		}
		return nil, fmt.Errorf("apply stock delta: %w", err)
	}
	return s, nil
}

// Reserve incrementa la reserva con UPDATE condicional: solo si la nueva reserva
// cabe en la cantidad en mano. Cero filas (par inexistente o sin disponibilidad)
// equivale a ErrInsufficientStock; así dos reservas concurrentes no pueden pasar
// ambas una verificación obsoleta y sobre-reservar.
func (r *StockLevelRepo) Reserve(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error) {
	query := `
		UPDATE stock_levels
		SET reserved_quantity = reserved_quantity + $3, updated_at = now()
		WHERE product_id = $1 AND warehouse_id = $2
		  AND reserved_quantity + $3 <= quantity
		RETURNING ` + stockLevelColumns
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID, warehouseID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInsufficientStock
		}
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	return s, nil
}

// ReleaseReservation decrementa la reserva con piso en cero: liberar más de lo
// reservado deja la reserva en 0, no es error. Par inexistente -> ErrNotFound.
func (r *StockLevelRepo) ReleaseReservation(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error) {
	query := `
		UPDATE stock_levels
		SET reserved_quantity = GREATEST(reserved_quantity - $3, 0), updated_at = now()
		WHERE product_id = $1 AND warehouse_id = $2
		RETURNING ` + stockLevelColumns
	s, err := scanStockLevel(r.q.QueryRow(ctx, query, productID, warehouseID, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("release reservation: %w", err)
	}
	return s, nil
}

// ListByWarehouse lista los saldos de una bodega.
func (r *StockLevelRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.StockLevel, error) {
	query := `
		SELECT ` + stockLevelColumns + `
		FROM stock_levels WHERE warehouse_id = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock levels by warehouse: %w", err)
	}
	defer rows.Close()
	return collectStockLevels(rows)
}

// ListByProduct lista los saldos de un producto en todas las bodegas.
func (r *StockLevelRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockLevel, error) {
	query := `
		SELECT ` + stockLevelColumns + `
		FROM stock_levels WHERE product_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list stock levels by product: %w", err)
	}
	defer rows.Close()
	return collectStockLevels(rows)
}

func collectStockLevels(rows pgx.Rows) ([]*entity.StockLevel, error) {
	var list []*entity.StockLevel
	for rows.Next() {
		var s entity.StockLevel
		if err := rows.Scan(&s.ProductID, &s.WarehouseID, &s.Quantity, &s.ReservedQuantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
