package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Engine es el motor de inventario: el único componente que escribe saldos
// (stock_levels) y el libro de movimientos (stock_moves). No guarda estado
// entre llamadas; toda operación compuesta corre dentro de una transacción
// vía TxRunner, y toda mutación de una sola fila usa sentencias condicionales
// cuyo WHERE revalida el invariante al escribir.
type Engine struct {
	levels repository.StockLevelRepository
	moves  repository.StockMoveRepository
	tx     TxRunner
	log    *logger.Logger
}

// NewEngine construye el motor. levels y moves van atados al pool (lecturas y
// reservas); las operaciones de movimiento físico abren su propia tx.
func NewEngine(levels repository.StockLevelRepository, moves repository.StockMoveRepository, tx TxRunner, log *logger.Logger) *Engine {
	return &Engine{levels: levels, moves: moves, tx: tx, log: log}
}

// ── Lecturas ──────────────────────────────────────────────────────────────────

// GetStockLevel devuelve el saldo del par (producto, bodega) o ErrNotFound.
func (e *Engine) GetStockLevel(ctx context.Context, productID, warehouseID string) (*entity.StockLevel, error) {
	if productID == "" || warehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	level, err := e.levels.Get(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, domain.ErrNotFound
	}
	return level, nil
}

// GetAvailableStock devuelve la cantidad disponible (en mano menos reservado),
// con piso en cero. Si el par no existe devuelve cero.
func (e *Engine) GetAvailableStock(ctx context.Context, productID, warehouseID string) (decimal.Decimal, error) {
	if productID == "" || warehouseID == "" {
		return decimal.Zero, domain.ErrInvalidInput
	}
	level, err := e.levels.Get(ctx, productID, warehouseID)
	if err != nil {
		return decimal.Zero, err
	}
	if level == nil {
		return decimal.Zero, nil
	}
	return level.Available(), nil
}

// CheckAvailability indica si hay al menos quantity disponible. quantity <= 0
// o par inexistente devuelven false. No muta estado.
func (e *Engine) CheckAvailability(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (bool, error) {
	if productID == "" || warehouseID == "" {
		return false, domain.ErrInvalidInput
	}
	if !quantity.IsPositive() {
		return false, nil
	}
	level, err := e.levels.Get(ctx, productID, warehouseID)
	if err != nil {
		return false, err
	}
	if level == nil {
		return false, nil
	}
	return level.Available().GreaterThanOrEqual(quantity), nil
}

// ── Reservas ──────────────────────────────────────────────────────────────────

// ReserveInput entrada para ReserveStock. DocumentType/DocumentID identifican el
// documento que reserva (orden de venta, etc.); el motor solo los registra en el
// log de auditoría — la reserva es un contador agregado, no un registro por documento.
type ReserveInput struct {
	ProductID    string
	WarehouseID  string
	Quantity     decimal.Decimal
	DocumentType string
	DocumentID   string
}

// ReserveStock incrementa la reserva del par. El chequeo de disponibilidad y el
// incremento son una sola sentencia condicional (reserved + qty <= quantity), de
// modo que dos reservas concurrentes no pueden sobre-reservar. No escribe
// movimiento: reservar no mueve stock físico.
func (e *Engine) ReserveStock(ctx context.Context, in ReserveInput) (*entity.StockLevel, error) {
	if in.ProductID == "" || in.WarehouseID == "" || !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	level, err := e.levels.Reserve(ctx, in.ProductID, in.WarehouseID, in.Quantity)
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("product_id", in.ProductID).
		Str("warehouse_id", in.WarehouseID).
		Str("quantity", in.Quantity.String()).
		Str("document_type", in.DocumentType).
		Str("document_id", in.DocumentID).
		Str("reserved", level.ReservedQuantity.String()).
		Msg("stock reservado")
	return level, nil
}

// ReleaseReservation decrementa la reserva con piso en cero: liberar más de lo
// reservado no es error, deja la reserva en 0. Par inexistente -> ErrNotFound.
func (e *Engine) ReleaseReservation(ctx context.Context, productID, warehouseID string, quantity decimal.Decimal) (*entity.StockLevel, error) {
	if productID == "" || warehouseID == "" || !quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	level, err := e.levels.ReleaseReservation(ctx, productID, warehouseID, quantity)
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("product_id", productID).
		Str("warehouse_id", warehouseID).
		Str("quantity", quantity.String()).
		Str("reserved", level.ReservedQuantity.String()).
		Msg("reserva liberada")
	return level, nil
}

// ── Movimientos físicos ───────────────────────────────────────────────────────

// ReceiveInput entrada para ReceiveStock.
type ReceiveInput struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal
	Source      entity.MoveSource // PURCHASE, PRODUCTION, RETURN, ADJUSTMENT
	Reference   string
	Note        string
	UserID      string
}

// ReceiveStock registra una entrada: suma quantity al saldo y anota un
// movimiento INBOUND×source con la bodega como destino.
func (e *Engine) ReceiveStock(ctx context.Context, in ReceiveInput) (*entity.StockMove, error) {
	if in.ProductID == "" || in.WarehouseID == "" || !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	moveType, err := entity.NewInboundType(in.Source)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	var move *entity.StockMove
	err = e.tx.Run(ctx, func(levelRepo repository.StockLevelRepository, moveRepo repository.StockMoveRepository) error {
		move, err = e.applyDelta(ctx, levelRepo, moveRepo, deltaParams{
			productID:   in.ProductID,
			warehouseID: in.WarehouseID,
			delta:       in.Quantity,
			moveType:    moveType,
			reference:   in.Reference,
			note:        in.Note,
			userID:      in.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logMove(move, "stock recibido")
	return move, nil
}

// IssueInput entrada para IssueStock. Si ReleaseReservation es true, primero se
// libera una reserva por la misma cantidad (la salida consume stock reservado).
type IssueInput struct {
	ProductID          string
	WarehouseID        string
	Quantity           decimal.Decimal
	Source             entity.MoveSource // SALES_B2B, SALES_B2C, RETAIL, DEALER, ...
	ReleaseReservation bool
	Reference          string
	Note               string
	UserID             string
}

// IssueStock registra una salida. La disponibilidad se evalúa antes de cualquier
// mutación (con la fila bloqueada); si no alcanza, nada se escribe.
func (e *Engine) IssueStock(ctx context.Context, in IssueInput) (*entity.StockMove, error) {
	if in.ProductID == "" || in.WarehouseID == "" || !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	moveType, err := entity.NewOutboundType(in.Source)
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	var move *entity.StockMove
	err = e.tx.Run(ctx, func(levelRepo repository.StockLevelRepository, moveRepo repository.StockMoveRepository) error {
		// Bloquea la fila y verifica disponibilidad antes de mutar.
		level, err := levelRepo.GetForUpdate(ctx, in.ProductID, in.WarehouseID)
		if err != nil {
			return err
		}
		if level.Available().LessThan(in.Quantity) {
			return domain.ErrInsufficientStock
		}
		if in.ReleaseReservation {
			if _, err := levelRepo.ReleaseReservation(ctx, in.ProductID, in.WarehouseID, in.Quantity); err != nil {
				return err
			}
		}
		move, err = e.applyDelta(ctx, levelRepo, moveRepo, deltaParams{
			productID:   in.ProductID,
			warehouseID: in.WarehouseID,
			delta:       in.Quantity.Neg(),
			moveType:    moveType,
			reference:   in.Reference,
			note:        in.Note,
			userID:      in.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logMove(move, "stock emitido")
	return move, nil
}

// TransferInput entrada para TransferStock.
type TransferInput struct {
	ProductID         string
	SourceWarehouseID string
	TargetWarehouseID string
	Quantity          decimal.Decimal
	Reference         string
	Note              string
	UserID            string
}

// TransferResult las dos piernas de un traslado.
type TransferResult struct {
	SourceMove *entity.StockMove
	TargetMove *entity.StockMove
}

// TransferStock mueve quantity entre bodegas dentro de una sola transacción:
// salida OUTBOUND×TRANSFER en origen y entrada INBOUND×TRANSFER en destino.
// O se confirman las dos piernas (y ambos saldos) o ninguna.
func (e *Engine) TransferStock(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if in.ProductID == "" || in.SourceWarehouseID == "" || in.TargetWarehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.SourceWarehouseID == in.TargetWarehouseID || !in.Quantity.IsPositive() {
		return nil, domain.ErrInvalidInput
	}

	var result TransferResult
	err := e.tx.Run(ctx, func(levelRepo repository.StockLevelRepository, moveRepo repository.StockMoveRepository) error {
		origin, err := levelRepo.GetForUpdate(ctx, in.ProductID, in.SourceWarehouseID)
		if err != nil {
			return err
		}
		if origin.Available().LessThan(in.Quantity) {
			return domain.ErrInsufficientStock
		}
		result.SourceMove, err = e.applyDelta(ctx, levelRepo, moveRepo, deltaParams{
			productID:   in.ProductID,
			warehouseID: in.SourceWarehouseID,
			delta:       in.Quantity.Neg(),
			moveType:    entity.MoveOutboundTransfer,
			reference:   in.Reference,
			note:        in.Note,
			userID:      in.UserID,
		})
		if err != nil {
			return err
		}
		result.TargetMove, err = e.applyDelta(ctx, levelRepo, moveRepo, deltaParams{
			productID:   in.ProductID,
			warehouseID: in.TargetWarehouseID,
			delta:       in.Quantity,
			moveType:    entity.MoveInboundTransfer,
			reference:   in.Reference,
			note:        in.Note,
			userID:      in.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("product_id", in.ProductID).
		Str("source_warehouse_id", in.SourceWarehouseID).
		Str("target_warehouse_id", in.TargetWarehouseID).
		Str("quantity", in.Quantity.String()).
		Msg("stock trasladado")
	return &result, nil
}

// AdjustInput entrada para AdjustStock. QuantityDelta firmado y distinto de cero.
type AdjustInput struct {
	ProductID     string
	WarehouseID   string
	QuantityDelta decimal.Decimal
	Reason        string
	Reference     string
	Note          string
	UserID        string
}

// AdjustStock registra un ajuste administrativo. Delta cero se rechaza (no es un
// no-op silencioso). Un ajuste negativo no puede dejar el saldo por debajo de la
// reserva vigente: la corrección nunca deja disponible < 0.
func (e *Engine) AdjustStock(ctx context.Context, in AdjustInput) (*entity.StockMove, error) {
	if in.ProductID == "" || in.WarehouseID == "" || in.QuantityDelta.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	moveType := entity.MoveInboundAdjustment
	if in.QuantityDelta.IsNegative() {
		moveType = entity.MoveOutboundAdjustment
	}
	note := in.Note
	if in.Reason != "" {
		if note != "" {
			note = in.Reason + " - " + note
		} else {
			note = in.Reason
		}
	}

	var move *entity.StockMove
	err := e.tx.Run(ctx, func(levelRepo repository.StockLevelRepository, moveRepo repository.StockMoveRepository) error {
		level, err := levelRepo.GetForUpdate(ctx, in.ProductID, in.WarehouseID)
		if err != nil {
			return err
		}
		next := level.Quantity.Add(in.QuantityDelta)
		// El ajuste no puede dejar el saldo negativo ni por debajo de lo reservado.
		if next.IsNegative() || next.LessThan(level.ReservedQuantity) {
			return domain.ErrInsufficientStock
		}
		move, err = e.applyDelta(ctx, levelRepo, moveRepo, deltaParams{
			productID:   in.ProductID,
			warehouseID: in.WarehouseID,
			delta:       in.QuantityDelta,
			moveType:    moveType,
			reference:   in.Reference,
			note:        note,
			userID:      in.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logMove(move, "stock ajustado")
	return move, nil
}

// ── Núcleo de delta atómico ───────────────────────────────────────────────────

type deltaParams struct {
	productID   string
	warehouseID string
	delta       decimal.Decimal
	moveType    entity.StockMoveType
	reference   string
	note        string
	userID      string
}

// applyDelta es el punto único por el que pasa todo cambio de saldo. Con los
// repos atados a la tx del caller: lee el saldo con la fila bloqueada, rechaza
// deltas que dejarían el saldo negativo, aplica el delta con el upsert aditivo
// condicional y anota el movimiento. Si cualquier paso falla, la tx del caller
// revierte saldo y movimiento juntos.
func (e *Engine) applyDelta(ctx context.Context, levelRepo repository.StockLevelRepository, moveRepo repository.StockMoveRepository, p deltaParams) (*entity.StockMove, error) {
	current, err := levelRepo.GetForUpdate(ctx, p.productID, p.warehouseID)
	if err != nil {
		return nil, err
	}
	if current.Quantity.Add(p.delta).IsNegative() {
		return nil, domain.ErrInsufficientStock
	}
	if _, err := levelRepo.ApplyDelta(ctx, p.productID, p.warehouseID, p.delta); err != nil {
		return nil, err
	}

	move := &entity.StockMove{
		ProductID:     p.productID,
		QuantityDelta: p.delta,
		MoveType:      p.moveType,
		Reference:     p.reference,
		Note:          p.note,
		CreatedBy:     p.userID,
		CreatedAt:     time.Now(),
	}
	if p.moveType.IsInbound() {
		move.TargetWarehouseID = p.warehouseID
	} else {
		move.SourceWarehouseID = p.warehouseID
	}
	if err := moveRepo.Create(ctx, move); err != nil {
		return nil, err
	}
	return move, nil
}

func (e *Engine) logMove(move *entity.StockMove, msg string) {
	e.log.Info().
		Str("move_id", move.ID).
		Str("product_id", move.ProductID).
		Str("warehouse_id", move.AffectedWarehouseID()).
		Str("delta", move.QuantityDelta.String()).
		Str("move_type", move.MoveType.String()).
		Msg(msg)
}

// ── Consultas del libro y de saldos ───────────────────────────────────────────

// ListMovementsByProduct lista el libro de un producto (auditoría), más reciente primero.
func (e *Engine) ListMovementsByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	return e.moves.ListByProduct(ctx, productID, from, to, normalizeLimit(limit), offset)
}

// ListMovementsByWarehouse lista el libro donde la bodega participa como origen o destino.
func (e *Engine) ListMovementsByWarehouse(ctx context.Context, warehouseID string, from, to *time.Time, limit, offset int) ([]*entity.StockMove, error) {
	if warehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	return e.moves.ListByWarehouse(ctx, warehouseID, from, to, normalizeLimit(limit), offset)
}

// ListWarehouseLevels lista los saldos de una bodega.
func (e *Engine) ListWarehouseLevels(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.StockLevel, error) {
	if warehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	return e.levels.ListByWarehouse(ctx, warehouseID, normalizeLimit(limit), offset)
}

// ListProductLevels lista los saldos de un producto en todas las bodegas.
func (e *Engine) ListProductLevels(ctx context.Context, productID string) ([]*entity.StockLevel, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	return e.levels.ListByProduct(ctx, productID)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
