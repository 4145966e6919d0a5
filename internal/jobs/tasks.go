package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

const (
	// QueueDefault es la cola a la que van todas las tareas de este servicio.
	QueueDefault = "default"
	// TaskEInvoiceGenerate registra la factura electrónica de una venta registrada.
	TaskEInvoiceGenerate = "einvoice:generate"
)

// EInvoicePayload identifica la venta a registrar.
type EInvoicePayload struct {
	MerchantID string `json:"merchant_id"`
	SaleID     string `json:"sale_id"`
}

// NewEInvoiceGenerateTask construye la tarea. La cola nunca la reintenta:
// un intento de resultado desconocido se concilia, no se repite. El id
// de venta es el id de la tarea, así una venta se encola a lo sumo una vez.
func NewEInvoiceGenerateTask(merchantID, saleID string) (*asynq.Task, error) {
	if merchantID == "" || saleID == "" {
		return nil, errors.New("jobs: merchant and sale ids are required")
	}
	body, err := json.Marshal(EInvoicePayload{MerchantID: merchantID, SaleID: saleID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEInvoiceGenerate, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.TaskID(saleID),
		asynq.Retention(24*time.Hour),
	), nil
}

// Generator registra la factura electrónica de una venta; *compliance.Manager lo implementa.
type Generator interface {
	Generate(ctx context.Context, merchantID, saleID string) (*dto.EInvoiceResponse, error)
}

// EInvoiceJob atiende TaskEInvoiceGenerate.
type EInvoiceJob struct {
	gen     Generator
	timeout time.Duration
	log     *logger.Logger
}

// NewEInvoiceJob construye el handler. timeout limita una generación.
func NewEInvoiceJob(gen Generator, timeout time.Duration, log *logger.Logger) *EInvoiceJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EInvoiceJob{gen: gen, timeout: timeout, log: log.Named("jobs")}
}

// Handle ejecuta una generación. Los fallos ya quedan en el documento;
// la tarea se archiva para que los operadores la vean junto a la auditoría.
func (j *EInvoiceJob) Handle(ctx context.Context, t *asynq.Task) error {
	var p EInvoicePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.MerchantID == "" || p.SaleID == "" {
		return fmt.Errorf("decode %s payload: %w", TaskEInvoiceGenerate, asynq.SkipRetry)
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	out, err := j.gen.Generate(ctx, p.MerchantID, p.SaleID)
	if err != nil {
		j.log.Warn().Err(err).Str("merchant_id", p.MerchantID).Str("sale_id", p.SaleID).
			Str("op", "generate_job").Msg("queued e-invoice generation failed")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	j.log.Info().Str("merchant_id", p.MerchantID).Str("sale_id", p.SaleID).Str("op", "generate_job").
		Str("status", out.Status).Msg("queued e-invoice generation done")
	return nil
}
