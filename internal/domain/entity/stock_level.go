package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLevel representa el saldo actual de un producto en una bodega
// (tabla materializada; la fuente de verdad son los movimientos).
// Invariante: 0 <= ReservedQuantity <= Quantity.
type StockLevel struct {
	ProductID        string
	WarehouseID      string
	Quantity         decimal.Decimal
	ReservedQuantity decimal.Decimal
	UpdatedAt        time.Time
}

// Available devuelve la cantidad disponible (en mano menos reservado), nunca negativa.
func (s *StockLevel) Available() decimal.Decimal {
	avail := s.Quantity.Sub(s.ReservedQuantity)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
