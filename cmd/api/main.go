package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/agro-pos-api/internal/bootstrap"
	httpRouter "github.com/jhoicas/agro-pos-api/internal/interfaces/http"
	"github.com/jhoicas/agro-pos-api/pkg/config"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Str("irp_env", cfg.IRP.Env).
		Msg("starting application")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()
	c, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wire application")
	}
	defer c.Close()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.IRP.Timeout + time.Second*10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Agro POS API",
		}))
	} else {
		log.Warn().Str("file", swaggerFile).Msg("swagger document not found, /docs disabled")
	}

	var ping httpRouter.Pinger
	if c.Ping != nil {
		ping = c.Ping
	}
	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     c.Auth,
		CustomerUC: c.Customers,
		ProductUC:  c.Products,
		BatchUC:    c.Batches,
		ExpiryUC:   c.Expiry,
		SaleUC:     c.Sales,
		EInvoices:  c.EInvoices,
		Settings:   c.Settings,
		Health:     httpRouter.NewHealthHandler(cfg.App.Name, cfg.App.Env, ping),
		JWTSecret:  cfg.JWT.Secret,
		Log:        log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, closing server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	// Las generaciones en proceso escriben su resultado antes de cerrar los stores.
	c.EInvoices.Wait()

	log.Info().Msg("application stopped")
}
