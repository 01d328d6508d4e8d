package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *inventory.Engine
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	stock := api.Group("/stock", AuthMiddleware(deps.JWTSecret))
	handler := NewInventoryHandler(deps.Engine)

	// Saldos (lecturas)
	stock.Get("/levels", handler.ListLevels)
	stock.Get("/levels/:productID/:warehouseID", handler.GetLevel)
	stock.Get("/levels/:productID/:warehouseID/available", handler.GetAvailable)
	stock.Get("/levels/:productID/:warehouseID/availability", handler.CheckAvailability)

	// Reservas
	stock.Post("/reservations", handler.Reserve)
	stock.Post("/reservations/release", handler.Release)

	// Movimientos físicos
	stock.Post("/receipts", handler.Receive)
	stock.Post("/issues", handler.Issue)
	stock.Post("/transfers", handler.Transfer)

	// Ajustes administrativos: solo admin
	stock.Post("/adjustments", RequireRole("admin"), handler.Adjust)

	// Libro de movimientos (auditoría)
	stock.Get("/movements", handler.ListMovements)
}
