package entity

import (
	"fmt"
	"strings"
)

// MoveAction clasifica la dirección de un movimiento de inventario.
type MoveAction string

// Acciones de movimiento (conjunto cerrado). TRANSFER existe como acción del
// catálogo, pero cada pierna de un traslado se registra como INBOUND×TRANSFER
// u OUTBOUND×TRANSFER.
const (
	ActionInbound  MoveAction = "INBOUND"
	ActionOutbound MoveAction = "OUTBOUND"
	ActionTransfer MoveAction = "TRANSFER"
)

// MoveSource clasifica el origen o motivo del movimiento.
type MoveSource string

// Orígenes de movimiento (conjunto cerrado).
const (
	SourcePurchase           MoveSource = "PURCHASE"
	SourceProduction         MoveSource = "PRODUCTION"
	SourceReturn             MoveSource = "RETURN"
	SourceTransfer           MoveSource = "TRANSFER"
	SourceAdjustment         MoveSource = "ADJUSTMENT"
	SourceSalesB2B           MoveSource = "SALES_B2B"
	SourceSalesB2C           MoveSource = "SALES_B2C"
	SourceRetail             MoveSource = "RETAIL"
	SourceDealer             MoveSource = "DEALER"
	SourceProductionIssue    MoveSource = "PRODUCTION_ISSUE"
	SourceEvent              MoveSource = "EVENT"
	SourceLoss               MoveSource = "LOSS"
	SourceAdjustmentDecrease MoveSource = "ADJUSTMENT_DECREASE"
)

// StockMoveType es la etiqueta (acción × origen) de un movimiento. Los campos son
// privados: solo las variables del catálogo y los constructores pueden producir
// valores, de modo que una combinación no listada es irrepresentable fuera de
// este paquete.
type StockMoveType struct {
	action MoveAction
	source MoveSource
}

// Catálogo de combinaciones válidas (lista blanca, no producto cruzado).
var (
	MoveInboundPurchase   = StockMoveType{ActionInbound, SourcePurchase}
	MoveInboundProduction = StockMoveType{ActionInbound, SourceProduction}
	MoveInboundReturn     = StockMoveType{ActionInbound, SourceReturn}
	MoveInboundTransfer   = StockMoveType{ActionInbound, SourceTransfer}
	MoveInboundAdjustment = StockMoveType{ActionInbound, SourceAdjustment}

	MoveOutboundSalesB2B           = StockMoveType{ActionOutbound, SourceSalesB2B}
	MoveOutboundSalesB2C           = StockMoveType{ActionOutbound, SourceSalesB2C}
	MoveOutboundRetail             = StockMoveType{ActionOutbound, SourceRetail}
	MoveOutboundDealer             = StockMoveType{ActionOutbound, SourceDealer}
	MoveOutboundProductionIssue    = StockMoveType{ActionOutbound, SourceProductionIssue}
	MoveOutboundEvent              = StockMoveType{ActionOutbound, SourceEvent}
	MoveOutboundLoss               = StockMoveType{ActionOutbound, SourceLoss}
	MoveOutboundTransfer           = StockMoveType{ActionOutbound, SourceTransfer}
	MoveOutboundAdjustment         = StockMoveType{ActionOutbound, SourceAdjustment}
	MoveOutboundAdjustmentDecrease = StockMoveType{ActionOutbound, SourceAdjustmentDecrease}
)

// ValidMoveTypes lista el catálogo completo en orden estable (para validación y docs).
var ValidMoveTypes = []StockMoveType{
	MoveInboundPurchase, MoveInboundProduction, MoveInboundReturn,
	MoveInboundTransfer, MoveInboundAdjustment,
	MoveOutboundSalesB2B, MoveOutboundSalesB2C, MoveOutboundRetail,
	MoveOutboundDealer, MoveOutboundProductionIssue, MoveOutboundEvent,
	MoveOutboundLoss, MoveOutboundTransfer, MoveOutboundAdjustment,
	MoveOutboundAdjustmentDecrease,
}

var moveTypeByTag = func() map[string]StockMoveType {
	m := make(map[string]StockMoveType, len(ValidMoveTypes))
	for _, t := range ValidMoveTypes {
		m[t.String()] = t
	}
	return m
}()

// NewInboundType devuelve la etiqueta INBOUND×source si la combinación es válida.
func NewInboundType(source MoveSource) (StockMoveType, error) {
	t, ok := moveTypeByTag[string(ActionInbound)+"_"+string(source)]
	if !ok {
		return StockMoveType{}, fmt.Errorf("tipo de movimiento inválido: INBOUND × %s", source)
	}
	return t, nil
}

// NewOutboundType devuelve la etiqueta OUTBOUND×source si la combinación es válida.
func NewOutboundType(source MoveSource) (StockMoveType, error) {
	t, ok := moveTypeByTag[string(ActionOutbound)+"_"+string(source)]
	if !ok {
		return StockMoveType{}, fmt.Errorf("tipo de movimiento inválido: OUTBOUND × %s", source)
	}
	return t, nil
}

// ParseStockMoveType reconstruye la etiqueta desde su forma persistida ("ACTION_SOURCE").
func ParseStockMoveType(tag string) (StockMoveType, error) {
	t, ok := moveTypeByTag[strings.ToUpper(strings.TrimSpace(tag))]
	if !ok {
		return StockMoveType{}, fmt.Errorf("tipo de movimiento desconocido: %q", tag)
	}
	return t, nil
}

// Action devuelve la acción (INBOUND u OUTBOUND).
func (t StockMoveType) Action() MoveAction { return t.action }

// Source devuelve el origen del movimiento.
func (t StockMoveType) Source() MoveSource { return t.source }

// IsInbound indica si el movimiento suma al saldo de la bodega afectada.
func (t StockMoveType) IsInbound() bool { return t.action == ActionInbound }

// IsZero indica si la etiqueta no fue inicializada.
func (t StockMoveType) IsZero() bool { return t.action == "" && t.source == "" }

// String devuelve la forma persistida en stock_moves.move_type, ej. "INBOUND_PURCHASE".
func (t StockMoveType) String() string {
	return string(t.action) + "_" + string(t.source)
}
