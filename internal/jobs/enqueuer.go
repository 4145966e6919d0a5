package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/agro-pos-api/internal/application/sales"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

var _ sales.DocumentScheduler = (*Enqueuer)(nil)

// Enqueuer encola en Redis la generación de facturas electrónicas para el binario worker.
type Enqueuer struct {
	client *asynq.Client
	log    *logger.Logger
}

// NewEnqueuer conecta un cliente asynq.
func NewEnqueuer(opt asynq.RedisConnOpt, log *logger.Logger) *Enqueuer {
	if log == nil {
		log = logger.Nop()
	}
	return &Enqueuer{client: asynq.NewClient(opt), log: log.Named("jobs")}
}

// Schedule encola la venta. Una venta ya encolada no es un error.
func (e *Enqueuer) Schedule(ctx context.Context, merchantID, saleID string) error {
	task, err := NewEInvoiceGenerateTask(merchantID, saleID)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		e.log.Debug().Str("merchant_id", merchantID).Str("sale_id", saleID).Msg("e-invoice task already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskEInvoiceGenerate, err)
	}
	e.log.Info().Str("merchant_id", merchantID).Str("sale_id", saleID).Str("task_id", info.ID).
		Str("queue", info.Queue).Msg("e-invoice task queued")
	return nil
}

// Close libera la conexión a Redis.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
