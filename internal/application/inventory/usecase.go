package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/inventory"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

const dateLayout = "2006-01-02"

// BatchUseCase recibe stock en lotes y expone el ledger por producto.
type BatchUseCase struct {
	txRunner    TxRunner
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	log         *logger.Logger
	now         func() time.Time
}

// NewBatchUseCase construye el caso de uso. log puede ser nil.
func NewBatchUseCase(
	txRunner TxRunner,
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	log *logger.Logger,
) *BatchUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &BatchUseCase{
		txRunner:    txRunner,
		batchRepo:   batchRepo,
		productRepo: productRepo,
		log:         log.Named("inventory"),
		now:         time.Now,
	}
}

// WithClock reemplaza el reloj; lo usan los tests.
func (uc *BatchUseCase) WithClock(now func() time.Time) *BatchUseCase {
	uc.now = now
	return uc
}

// ReceiveBatch crea un lote a partir de una recepción de compra y registra un
// movimiento RECEIPT en la misma transacción.
func (uc *BatchUseCase) ReceiveBatch(ctx context.Context, merchantID, userID, productID string, in dto.ReceiveBatchRequest) (*dto.BatchResponse, error) {
	number := strings.TrimSpace(in.BatchNumber)
	if number == "" || !in.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: a batch needs a number and a positive quantity", domain.ErrInvalidInput)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return nil, err
	}
	mfg, err := parseDate(in.ManufactureDate)
	if err != nil {
		return nil, err
	}
	if expiry != nil && mfg != nil && expiry.Before(*mfg) {
		return nil, fmt.Errorf("%w: expiry date precedes manufacture date", domain.ErrInvalidInput)
	}

	product, err := uc.productRepo.GetByID(ctx, merchantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	now := uc.now()
	batch := &entity.Batch{
		ID:              uuid.New().String(),
		MerchantID:      merchantID,
		ProductID:       productID,
		BatchNumber:     number,
		ExpiryDate:      expiry,
		ManufactureDate: mfg,
		Available:       in.Quantity,
		Reserved:        decimal.Zero,
		SupplierRef:     strings.TrimSpace(in.SupplierRef),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = uc.txRunner.Run(ctx, func(batchRepo repository.BatchRepository, movRepo repository.StockMovementRepository) error {
		if err := batchRepo.Create(ctx, batch); err != nil {
			return err
		}
		return movRepo.Create(ctx, &entity.StockMovement{
			ID:         uuid.New().String(),
			MerchantID: merchantID,
			ProductID:  productID,
			BatchID:    batch.ID,
			Type:       entity.MovementTypeReceipt,
			Quantity:   in.Quantity,
			CreatedAt:  now,
			CreatedBy:  userID,
		})
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("merchant_id", merchantID).Str("product_id", productID).Str("batch_id", batch.ID).
		Str("quantity", in.Quantity.String()).Msg("batch received")
	resp := toBatchResponse(batch)
	return &resp, nil
}

// ListBatches devuelve todos los lotes de un producto en orden de asignación, los
// agotados al final, con la cantidad libre total.
func (uc *BatchUseCase) ListBatches(ctx context.Context, merchantID, productID string) (*dto.BatchLedgerResponse, error) {
	product, err := uc.productRepo.GetByID(ctx, merchantID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	batches, err := uc.batchRepo.ListByProduct(ctx, merchantID, productID)
	if err != nil {
		return nil, err
	}
	ledger := inventory.NewLedger(productID, batches)
	ordered := ledger.Batches()
	inventory.SortFEFO(ordered)

	resp := &dto.BatchLedgerResponse{
		ProductID: productID,
		TotalFree: ledger.TotalFree(),
		Batches:   make([]dto.BatchResponse, 0, len(ordered)),
	}
	var exhausted []dto.BatchResponse
	for _, b := range ordered {
		if b.Free().IsPositive() {
			resp.Batches = append(resp.Batches, toBatchResponse(b))
		} else {
			exhausted = append(exhausted, toBatchResponse(b))
		}
	}
	resp.Batches = append(resp.Batches, exhausted...)
	return resp, nil
}

// AdjustBatch aplica una corrección de conteo a un lote. Igual que las ventas
// escribe con compare-and-swap versionado: una venta concurrente lo hace fallar
// con ErrStockConflict en lugar de pisarla.
func (uc *BatchUseCase) AdjustBatch(ctx context.Context, merchantID, userID, batchID string, in dto.AdjustBatchRequest) (*dto.BatchResponse, error) {
	if in.Quantity.IsZero() || strings.TrimSpace(in.Reason) == "" {
		return nil, fmt.Errorf("%w: an adjustment needs a non-zero quantity and a reason", domain.ErrInvalidInput)
	}
	var out *entity.Batch
	err := uc.txRunner.Run(ctx, func(batchRepo repository.BatchRepository, movRepo repository.StockMovementRepository) error {
		b, err := batchRepo.GetByID(ctx, merchantID, batchID)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrNotFound
		}
		if b.Available.Add(in.Quantity).LessThan(b.Reserved) {
			return &domain.InsufficientStockError{ProductID: b.ProductID, Requested: in.Quantity.Neg(), Available: b.Free()}
		}
		if err := batchRepo.AdjustAvailable(ctx, b.ID, b.Version, in.Quantity); err != nil {
			return err
		}
		if err := movRepo.Create(ctx, &entity.StockMovement{
			ID:         uuid.New().String(),
			MerchantID: merchantID,
			ProductID:  b.ProductID,
			BatchID:    b.ID,
			Type:       entity.MovementTypeAdjust,
			Quantity:   in.Quantity,
			CreatedAt:  uc.now(),
			CreatedBy:  userID,
		}); err != nil {
			return err
		}
		out, err = batchRepo.GetByID(ctx, merchantID, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("merchant_id", merchantID).Str("batch_id", batchID).Str("quantity", in.Quantity.String()).
		Str("reason", in.Reason).Msg("batch adjusted")
	resp := toBatchResponse(out)
	return &resp, nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return &t, nil
}

func toBatchResponse(b *entity.Batch) dto.BatchResponse {
	r := dto.BatchResponse{
		ID:          b.ID,
		ProductID:   b.ProductID,
		BatchNumber: b.BatchNumber,
		Available:   b.Available,
		Reserved:    b.Reserved,
		Free:        b.Free(),
		SupplierRef: b.SupplierRef,
		Version:     b.Version,
	}
	if b.ExpiryDate != nil {
		r.ExpiryDate = b.ExpiryDate.Format(dateLayout)
	}
	if b.ManufactureDate != nil {
		r.ManufactureDate = b.ManufactureDate.Format(dateLayout)
	}
	return r
}
