package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockMoveRepository = (*StockMoveRepo)(nil)

// StockMoveRepo implementación del libro de movimientos sobre PostgreSQL
// (usable con pool o tx). Solo inserta y lee: el libro es inmutable.
type StockMoveRepo struct {
	q Querier
}

// NewStockMoveRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMoveRepository(q Querier) *StockMoveRepo {
	return &StockMoveRepo{q: q}
}

const stockMoveColumns = "id, product_id, quantity_delta, move_type, source_warehouse_id, target_warehouse_id, reference, note, created_by, created_at"

// Create persiste un movimiento en el libro.
func (r *StockMoveRepo) Create(ctx context.Context, move *entity.StockMove) error {
	if move.ID == "" {
		move.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_moves (` + stockMoveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		move.ID, move.ProductID, move.QuantityDelta, move.MoveType.String(),
		nullable(move.SourceWarehouseID), nullable(move.TargetWarehouseID),
		nullable(move.Reference), nullable(move.Note), nullable(move.CreatedBy),
		move.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create stock move: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID, o nil si no existe.
func (r *StockMoveRepo) GetByID(ctx context.Context, id string) (*entity.StockMove, error) {
	query := `
		SELECT ` + stockMoveColumns + `
		FROM stock_moves WHERE id = $1`
	m, err := scanStockMove(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock move: %w", err)
	}
	return m, nil
}

// ListByWarehouse lista movimientos donde la bodega participa como origen o
// destino, en un rango de fechas opcional.
func (r *StockMoveRepo) ListByWarehouse(ctx context.Context, warehouseID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error) {
	query := `
		SELECT ` + stockMoveColumns + `
		FROM stock_moves WHERE (source_warehouse_id = $1 OR target_warehouse_id = $1)`
	args := []any{warehouseID}
	query, args = appendDateRange(query, args, from, to)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.list(ctx, query, args)
}

// ListByProduct lista movimientos de un producto en un rango de fechas opcional.
func (r *StockMoveRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error) {
	query := `
		SELECT ` + stockMoveColumns + `
		FROM stock_moves WHERE product_id = $1`
	args := []any{productID}
	query, args = appendDateRange(query, args, from, to)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return r.list(ctx, query, args)
}

func (r *StockMoveRepo) list(ctx context.Context, query string, args []any) ([]*entity.StockMove, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock moves: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMove
	for rows.Next() {
		m, err := scanStockMove(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock move: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func appendDateRange(query string, args []any, from, to *time.Time) (string, []any) {
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return query, args
}

func scanStockMove(row pgx.Row) (*entity.StockMove, error) {
	var m entity.StockMove
	var moveType string
	var sourceWh, targetWh, reference, note, createdBy *string
	err := row.Scan(&m.ID, &m.ProductID, &m.QuantityDelta, &moveType,
		&sourceWh, &targetWh, &reference, &note, &createdBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	t, err := entity.ParseStockMoveType(moveType)
	if err != nil {
		return nil, err
	}
	m.MoveType = t
	m.SourceWarehouseID = deref(sourceWh)
	m.TargetWarehouseID = deref(targetWh)
	m.Reference = deref(reference)
	m.Note = deref(note)
	m.CreatedBy = deref(createdBy)
	return &m, nil
}

// nullable mapea string vacío a NULL en la inserción.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
