package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhoicas/agro-pos-api/internal/bootstrap"
	"github.com/jhoicas/agro-pos-api/internal/jobs"
	"github.com/jhoicas/agro-pos-api/pkg/config"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	}).Named("worker")

	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR is required by the worker")
	}
	if cfg.DB.Driver == "memory" {
		log.Fatal().Msg("the worker cannot share an in-memory store with the API, use DB_DRIVER=postgres")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wire application")
	}
	defer c.Close()

	job := jobs.NewEInvoiceJob(c.EInvoices, cfg.Compliance.AsyncTimeout, log)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpt:    c.RedisOpt,
		Concurrency: 4,
		Log:         log,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEInvoiceGenerate, Handler: job.Handle},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build worker")
	}

	log.Info().Str("redis", cfg.Redis.Addr).Msg("consuming e-invoice tasks")
	if err := worker.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}
}
