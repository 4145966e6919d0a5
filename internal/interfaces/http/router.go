package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-pos-api/internal/application/auth"
	"github.com/jhoicas/agro-pos-api/internal/application/catalog"
	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/inventory"
	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

// RouterDeps dependencias del router.
type RouterDeps struct {
	AuthUC     *auth.AuthUseCase
	CustomerUC *catalog.CustomerUseCase
	ProductUC  *catalog.ProductUseCase
	BatchUC    *inventory.BatchUseCase
	ExpiryUC   *inventory.ExpiryReportUseCase
	SaleUC     *sales.SaleUseCase
	EInvoices  *compliance.Manager
	Settings   *compliance.SettingsUseCase
	Health     *HealthHandler
	JWTSecret  string
	Log        *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("http")

	if deps.Health != nil {
		app.Get("/health", deps.Health.Check)
	}

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC, log)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Todo lo que sigue requiere token Bearer.
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Get("/auth/me", authHandler.Me)

	customerHandler := NewCustomerHandler(deps.CustomerUC, log)
	customers := protected.Group("/customers")
	customers.Post("/", customerHandler.Create)
	customers.Get("/:id", customerHandler.GetByID)

	productHandler := NewProductHandler(deps.ProductUC, log)
	inventoryHandler := NewInventoryHandler(deps.BatchUC, deps.ExpiryUC, log)
	products := protected.Group("/products")
	products.Post("/", productHandler.Create)
	products.Get("/:id", productHandler.GetByID)
	products.Get("/:id/batches", inventoryHandler.ListBatches)
	products.Post("/:id/batches", inventoryHandler.ReceiveBatch)

	batches := protected.Group("/batches")
	batches.Get("/expiring", inventoryHandler.Expiring)
	batches.Post("/:id/adjustments", inventoryHandler.AdjustBatch)

	saleHandler := NewSaleHandler(deps.SaleUC, log)
	einvoiceHandler := NewEInvoiceHandler(deps.EInvoices, deps.Settings, log)
	salesGroup := protected.Group("/sales")
	salesGroup.Post("/proposals", saleHandler.Propose)
	salesGroup.Post("/", saleHandler.Commit)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Post("/:id/returns", saleHandler.CreateReturn)
	salesGroup.Post("/:id/payments", saleHandler.RecordPayment)
	salesGroup.Get("/:id/einvoice/eligibility", einvoiceHandler.Eligibility)
	salesGroup.Post("/:id/einvoice", einvoiceHandler.Generate)
	salesGroup.Get("/:id/einvoice", einvoiceHandler.Get)
	salesGroup.Post("/:id/einvoice/verify", einvoiceHandler.Verify)
	salesGroup.Post("/:id/einvoice/cancel", einvoiceHandler.Cancel)
	salesGroup.Get("/:id/einvoice/audit", einvoiceHandler.Audit)

	einvoiceConfig := protected.Group("/einvoice")
	einvoiceConfig.Get("/config", einvoiceHandler.GetConfig)
	einvoiceConfig.Put("/config", einvoiceHandler.SaveConfig)
}
