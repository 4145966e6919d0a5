// Package bootstrap arma los casos de uso desde la configuración. La API y el
// worker de cola lo comparten para usar los mismos stores y gateway IRP.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/agro-pos-api/internal/application/auth"
	"github.com/jhoicas/agro-pos-api/internal/application/catalog"
	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/application/inventory"
	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/internal/domain/tax"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/irp"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/memory"
	"github.com/jhoicas/agro-pos-api/internal/infrastructure/postgres"
	"github.com/jhoicas/agro-pos-api/internal/jobs"
	"github.com/jhoicas/agro-pos-api/pkg/config"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
	"github.com/jhoicas/agro-pos-api/pkg/secret"
)

// Container guarda la aplicación armada.
type Container struct {
	Auth      *auth.AuthUseCase
	Customers *catalog.CustomerUseCase
	Products  *catalog.ProductUseCase
	Batches   *inventory.BatchUseCase
	Expiry    *inventory.ExpiryReportUseCase
	Sales     *sales.SaleUseCase
	EInvoices *compliance.Manager
	Settings  *compliance.SettingsUseCase
	Provider  *irp.Provider

	// Ping verifica la base de datos; nil con el store en memoria.
	Ping func(ctx context.Context) error
	// RedisOpt se completa cuando Redis está configurado.
	RedisOpt asynq.RedisConnOpt

	closers []func()
}

// Close libera las conexiones en orden inverso al de adquisición.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type stores struct {
	merchants repository.MerchantRepository
	customers repository.CustomerRepository
	products  repository.ProductRepository
	batches   repository.BatchRepository
	sales     repository.SaleRepository
	docs      repository.EInvoiceRepository
	configs   repository.EInvoiceConfigRepository
	audit     repository.AuditRepository
	numbers   repository.InvoiceNumberGenerator
	saleTx    sales.TxRunner
	batchTx   inventory.TxRunner
}

// Build arma todo desde cfg. Ante un error libera cada recurso adquirido.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *Container, err error) {
	c := &Container{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	st, err := c.openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	box, err := sealingBox(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.IRP.CredentialsKey == "" {
		log.Warn().Msg("IRP_CREDENTIALS_KEY not set, sealing IRP secrets with a key derived from JWT_SECRET")
	}

	var tokens irp.TokenCache = irp.NewMemoryTokenCache()
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		tokens = irp.NewRedisTokenCache(rdb, box)
		c.RedisOpt = asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	}

	c.Provider = irp.NewProvider(irp.ProviderConfig{
		Env:       cfg.IRP.Env,
		BaseURL:   cfg.IRP.BaseURL,
		Timeout:   cfg.IRP.Timeout,
		TokenSkew: cfg.IRP.TokenSkew,
	}, st.configs, box, tokens, st.audit, log)

	c.EInvoices = compliance.NewManager(compliance.Deps{
		Sales:     st.sales,
		Docs:      st.docs,
		Configs:   st.configs,
		Audit:     st.audit,
		Merchants: st.merchants,
		Customers: st.customers,
		Gateways:  c.Provider,
		Log:       log,
	}, compliance.Config{
		Threshold:    cfg.Compliance.Threshold,
		CancelWindow: cfg.Compliance.CancelWindow,
		AsyncTimeout: cfg.Compliance.AsyncTimeout,
	})
	c.Settings = compliance.NewSettingsUseCase(st.configs, box)

	policy, err := tax.ParseUnknownBuyerPolicy(cfg.Sales.UnknownBuyerState)
	if err != nil {
		return nil, err
	}
	var scheduler sales.DocumentScheduler
	switch {
	case !cfg.Compliance.AutoGenerate:
	case c.RedisOpt != nil:
		enq := jobs.NewEnqueuer(c.RedisOpt, log)
		c.closers = append(c.closers, func() { _ = enq.Close() })
		scheduler = enq
	default:
		scheduler = c.EInvoices
	}
	c.Sales = sales.NewSaleUseCase(sales.Deps{
		TxRunner:  st.saleTx,
		Numbers:   st.numbers,
		Sales:     st.sales,
		Batches:   st.batches,
		Merchants: st.merchants,
		Customers: st.customers,
		Products:  st.products,
		Configs:   st.configs,
		Scheduler: scheduler,
		Log:       log,
	}, sales.Config{
		InvoicePrefix:      cfg.Sales.InvoicePrefix,
		ReturnPrefix:       cfg.Sales.ReturnPrefix,
		MaxConflictRetries: cfg.Sales.MaxConflictRetries,
		UnknownBuyer:       policy,
		RoundToRupee:       cfg.Sales.RoundToRupee,
		EInvoiceThreshold:  cfg.Compliance.Threshold,
	})

	c.Batches = inventory.NewBatchUseCase(st.batchTx, st.batches, st.products, log)
	c.Expiry = inventory.NewExpiryReportUseCase(st.batches, st.products)
	c.Customers = catalog.NewCustomerUseCase(st.customers)
	c.Products = catalog.NewProductUseCase(st.products)
	c.Auth = auth.NewAuthUseCase(st.merchants, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	return c, nil
}

func (c *Container) openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.DB.Driver == "memory" {
		log.Warn().Msg("DB_DRIVER=memory, data is lost on restart")
		m := memory.NewStore()
		return &stores{
			merchants: m.Merchants(),
			customers: m.Customers(),
			products:  m.Products(),
			batches:   m.Batches(),
			sales:     m.Sales(),
			docs:      m.EInvoices(),
			configs:   m.EInvoiceConfigs(),
			audit:     m.Audit(),
			numbers:   m,
			saleTx:    m,
			batchTx:   m,
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.closers = append(c.closers, pool.Close)
	c.Ping = pool.Ping
	if cfg.DB.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgresStores(pool), nil
}

func postgresStores(pool *pgxpool.Pool) *stores {
	tx := postgres.NewTxRunner(pool)
	return &stores{
		merchants: postgres.NewMerchantRepository(pool),
		customers: postgres.NewCustomerRepository(pool),
		products:  postgres.NewProductRepository(pool),
		batches:   postgres.NewBatchRepository(pool),
		sales:     postgres.NewSaleRepository(pool),
		docs:      postgres.NewEInvoiceRepository(pool),
		configs:   postgres.NewEInvoiceConfigRepository(pool),
		audit:     postgres.NewAuditRepository(pool),
		numbers:   postgres.NewInvoiceNumberGenerator(pool),
		saleTx:    tx,
		batchTx:   tx,
	}
}

// sealingBox devuelve la clave que sella las credenciales IRP en reposo. Sin
// IRP_CREDENTIALS_KEY la deriva del secreto JWT, algo que producción rechaza.
func sealingBox(cfg *config.Config) (*secret.Box, error) {
	if cfg.IRP.CredentialsKey != "" {
		return secret.New(cfg.IRP.CredentialsKey)
	}
	if cfg.App.Env == "production" {
		return nil, errors.New("IRP_CREDENTIALS_KEY is required in production")
	}
	return secret.FromPassphrase(cfg.JWT.Secret), nil
}
