package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// InventoryHandler maneja las peticiones HTTP del motor de inventario (protegido).
type InventoryHandler struct {
	engine *inventory.Engine
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(engine *inventory.Engine) *InventoryHandler {
	return &InventoryHandler{engine: engine}
}

// domainError traduce errores de dominio a respuestas HTTP.
func domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "saldo no encontrado"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// GetLevel devuelve el saldo de un producto en una bodega.
// GET /api/stock/levels/:productID/:warehouseID
func (h *InventoryHandler) GetLevel(c *fiber.Ctx) error {
	level, err := h.engine.GetStockLevel(c.Context(), c.Params("productID"), c.Params("warehouseID"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.NewStockLevelResponse(level))
}

// GetAvailable devuelve la cantidad disponible (0 si el par no existe).
// GET /api/stock/levels/:productID/:warehouseID/available
func (h *InventoryHandler) GetAvailable(c *fiber.Ctx) error {
	available, err := h.engine.GetAvailableStock(c.Context(), c.Params("productID"), c.Params("warehouseID"))
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{
		"product_id":   c.Params("productID"),
		"warehouse_id": c.Params("warehouseID"),
		"available":    available,
	})
}

// CheckAvailability indica si hay al menos ?quantity disponible.
// GET /api/stock/levels/:productID/:warehouseID/availability?quantity=10
func (h *InventoryHandler) CheckAvailability(c *fiber.Ctx) error {
	quantity, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "quantity inválido"})
	}
	ok, err := h.engine.CheckAvailability(c.Context(), c.Params("productID"), c.Params("warehouseID"), quantity)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"available": ok})
}

// ListLevels lista saldos por bodega o por producto.
// GET /api/stock/levels?warehouse_id=... | ?product_id=...
func (h *InventoryHandler) ListLevels(c *fiber.Ctx) error {
	warehouseID := c.Query("warehouse_id")
	productID := c.Query("product_id")

	var (
		levels []*entity.StockLevel
		err    error
	)
	switch {
	case warehouseID != "":
		levels, err = h.engine.ListWarehouseLevels(c.Context(), warehouseID, c.QueryInt("limit"), c.QueryInt("offset"))
	case productID != "":
		levels, err = h.engine.ListProductLevels(c.Context(), productID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "warehouse_id o product_id requerido"})
	}
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(levels), "levels": dto.NewStockLevelResponses(levels)})
}

// Reserve aparta stock disponible para un documento futuro.
// POST /api/stock/reservations
func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	var in dto.ReserveStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	level, err := h.engine.ReserveStock(c.Context(), inventory.ReserveInput{
		ProductID:    in.ProductID,
		WarehouseID:  in.WarehouseID,
		Quantity:     in.Quantity,
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.NewStockLevelResponse(level))
}

// Release libera una reserva (con piso en cero).
// POST /api/stock/reservations/release
func (h *InventoryHandler) Release(c *fiber.Ctx) error {
	var in dto.ReleaseReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	level, err := h.engine.ReleaseReservation(c.Context(), in.ProductID, in.WarehouseID, in.Quantity)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(dto.NewStockLevelResponse(level))
}

// Receive registra una entrada de stock.
// POST /api/stock/receipts
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	move, err := h.engine.ReceiveStock(c.Context(), inventory.ReceiveInput{
		ProductID:   in.ProductID,
		WarehouseID: in.WarehouseID,
		Quantity:    in.Quantity,
		Source:      entity.MoveSource(in.Source),
		Reference:   in.Reference,
		Note:        in.Note,
		UserID:      GetUserID(c),
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewStockMoveResponse(move))
}

// Issue registra una salida de stock.
// POST /api/stock/issues
func (h *InventoryHandler) Issue(c *fiber.Ctx) error {
	var in dto.IssueStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	move, err := h.engine.IssueStock(c.Context(), inventory.IssueInput{
		ProductID:          in.ProductID,
		WarehouseID:        in.WarehouseID,
		Quantity:           in.Quantity,
		Source:             entity.MoveSource(in.Source),
		ReleaseReservation: in.ReleaseReservation,
		Reference:          in.Reference,
		Note:               in.Note,
		UserID:             GetUserID(c),
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewStockMoveResponse(move))
}

// Transfer traslada stock entre bodegas (dos movimientos, una transacción).
// POST /api/stock/transfers
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	result, err := h.engine.TransferStock(c.Context(), inventory.TransferInput{
		ProductID:         in.ProductID,
		SourceWarehouseID: in.SourceWarehouseID,
		TargetWarehouseID: in.TargetWarehouseID,
		Quantity:          in.Quantity,
		Reference:         in.Reference,
		Note:              in.Note,
		UserID:            GetUserID(c),
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"source_move": dto.NewStockMoveResponse(result.SourceMove),
		"target_move": dto.NewStockMoveResponse(result.TargetMove),
	})
}

// Adjust registra un ajuste administrativo (solo admin).
// POST /api/stock/adjustments
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	move, err := h.engine.AdjustStock(c.Context(), inventory.AdjustInput{
		ProductID:     in.ProductID,
		WarehouseID:   in.WarehouseID,
		QuantityDelta: in.QuantityDelta,
		Reason:        in.Reason,
		Reference:     in.Reference,
		Note:          in.Note,
		UserID:        GetUserID(c),
	})
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewStockMoveResponse(move))
}

// ListMovements lista el libro de movimientos por producto o por bodega.
// GET /api/stock/movements?product_id=... | ?warehouse_id=... [&from=&to=&limit=&offset=]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
	}
	to, err := parseTimeQuery(c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
	}

	productID := c.Query("product_id")
	warehouseID := c.Query("warehouse_id")

	var moves []*entity.StockMove
	switch {
	case productID != "":
		moves, err = h.engine.ListMovementsByProduct(c.Context(), productID, from, to, c.QueryInt("limit"), c.QueryInt("offset"))
	case warehouseID != "":
		moves, err = h.engine.ListMovementsByWarehouse(c.Context(), warehouseID, from, to, c.QueryInt("limit"), c.QueryInt("offset"))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id o warehouse_id requerido"})
	}
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(moves), "movements": dto.NewStockMoveResponses(moves)})
}

func parseTimeQuery(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
