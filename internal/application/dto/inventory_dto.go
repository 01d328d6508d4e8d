package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReserveStockRequest body para POST /api/stock/reservations.
type ReserveStockRequest struct {
	ProductID    string          `json:"product_id"`
	WarehouseID  string          `json:"warehouse_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	DocumentType string          `json:"document_type,omitempty"`
	DocumentID   string          `json:"document_id,omitempty"`
}

// ReleaseReservationRequest body para POST /api/stock/reservations/release.
type ReleaseReservationRequest struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ReceiveStockRequest body para POST /api/stock/receipts.
type ReceiveStockRequest struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Source      string          `json:"source"` // PURCHASE, PRODUCTION, RETURN, ADJUSTMENT
	Reference   string          `json:"reference,omitempty"`
	Note        string          `json:"note,omitempty"`
}

// IssueStockRequest body para POST /api/stock/issues.
type IssueStockRequest struct {
	ProductID          string          `json:"product_id"`
	WarehouseID        string          `json:"warehouse_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	Source             string          `json:"source"` // SALES_B2B, SALES_B2C, RETAIL, ...
	ReleaseReservation bool            `json:"release_reservation,omitempty"`
	Reference          string          `json:"reference,omitempty"`
	Note               string          `json:"note,omitempty"`
}

// TransferStockRequest body para POST /api/stock/transfers.
type TransferStockRequest struct {
	ProductID         string          `json:"product_id"`
	SourceWarehouseID string          `json:"source_warehouse_id"`
	TargetWarehouseID string          `json:"target_warehouse_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	Reference         string          `json:"reference,omitempty"`
	Note              string          `json:"note,omitempty"`
}

// AdjustStockRequest body para POST /api/stock/adjustments.
type AdjustStockRequest struct {
	ProductID     string          `json:"product_id"`
	WarehouseID   string          `json:"warehouse_id"`
	QuantityDelta decimal.Decimal `json:"quantity_delta"` // firmado, distinto de cero
	Reason        string          `json:"reason,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	Note          string          `json:"note,omitempty"`
}

// StockLevelResponse saldo de un producto en una bodega.
type StockLevelResponse struct {
	ProductID        string          `json:"product_id"`
	WarehouseID      string          `json:"warehouse_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	Available        decimal.Decimal `json:"available"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewStockLevelResponse mapea la entidad al DTO de respuesta.
func NewStockLevelResponse(l *entity.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ProductID:        l.ProductID,
		WarehouseID:      l.WarehouseID,
		Quantity:         l.Quantity,
		ReservedQuantity: l.ReservedQuantity,
		Available:        l.Available(),
		UpdatedAt:        l.UpdatedAt,
	}
}

// StockMoveResponse un asiento del libro de movimientos.
type StockMoveResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	QuantityDelta     decimal.Decimal `json:"quantity_delta"`
	MoveType          string          `json:"move_type"`
	SourceWarehouseID string          `json:"source_warehouse_id,omitempty"`
	TargetWarehouseID string          `json:"target_warehouse_id,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	Note              string          `json:"note,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewStockMoveResponse mapea la entidad al DTO de respuesta.
func NewStockMoveResponse(m *entity.StockMove) StockMoveResponse {
	return StockMoveResponse{
		ID:                m.ID,
		ProductID:         m.ProductID,
		QuantityDelta:     m.QuantityDelta,
		MoveType:          m.MoveType.String(),
		SourceWarehouseID: m.SourceWarehouseID,
		TargetWarehouseID: m.TargetWarehouseID,
		Reference:         m.Reference,
		Note:              m.Note,
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
	}
}

// NewStockMoveResponses mapea una lista de movimientos.
func NewStockMoveResponses(moves []*entity.StockMove) []StockMoveResponse {
	out := make([]StockMoveResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, NewStockMoveResponse(m))
	}
	return out
}

// NewStockLevelResponses mapea una lista de saldos.
func NewStockLevelResponses(levels []*entity.StockLevel) []StockLevelResponse {
	out := make([]StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, NewStockLevelResponse(l))
	}
	return out
}
