package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMove representa un movimiento de inventario: un registro inmutable y firmado
// del cambio de cantidad. Convención: entrada -> TargetWarehouseID poblado y delta
// positivo; salida -> SourceWarehouseID poblado y delta negativo. Un traslado se
// registra como dos movimientos (salida en origen, entrada en destino).
type StockMove struct {
	ID                string
	ProductID         string
	QuantityDelta     decimal.Decimal // positivo entrada, negativo salida
	MoveType          StockMoveType
	SourceWarehouseID string // vacío si es entrada
	TargetWarehouseID string // vacío si es salida
	Reference         string // puntero libre al documento (ej. "SO-B2B:<código>")
	Note              string
	CreatedBy         string // UserID
	CreatedAt         time.Time
}

// AffectedWarehouseID devuelve la bodega cuyo saldo cambia con este movimiento.
func (m *StockMove) AffectedWarehouseID() string {
	if m.QuantityDelta.IsNegative() {
		return m.SourceWarehouseID
	}
	return m.TargetWarehouseID
}
