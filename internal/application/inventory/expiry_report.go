package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
)

// MaxExpiryWindowDays limita el reporte de próximos a vencer.
const MaxExpiryWindowDays = 365

// ExpiryReportUseCase lista los lotes que aún tienen stock libre y vencen pronto,
// para que el comercio los impulse en mostrador o los dé de baja.
type ExpiryReportUseCase struct {
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	now         func() time.Time
}

// NewExpiryReportUseCase construye el reporte.
func NewExpiryReportUseCase(batchRepo repository.BatchRepository, productRepo repository.ProductRepository) *ExpiryReportUseCase {
	return &ExpiryReportUseCase{batchRepo: batchRepo, productRepo: productRepo, now: time.Now}
}

// WithClock reemplaza el reloj; lo usan los tests.
func (uc *ExpiryReportUseCase) WithClock(now func() time.Time) *ExpiryReportUseCase {
	uc.now = now
	return uc
}

// ExpiringBatches devuelve los lotes que vencen dentro de days (incluidos los ya
// vencidos), ordenados: vencidos primero, luego vencimiento más próximo, luego más stock libre.
func (uc *ExpiryReportUseCase) ExpiringBatches(ctx context.Context, merchantID string, days int) ([]dto.ExpiringBatchResponse, error) {
	if days < 0 || days > MaxExpiryWindowDays {
		return nil, fmt.Errorf("%w: days must be between 0 and %d", domain.ErrInvalidInput, MaxExpiryWindowDays)
	}
	now := uc.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	until := today.AddDate(0, 0, days)

	batches, err := uc.batchRepo.ListExpiring(ctx, merchantID, until)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return []dto.ExpiringBatchResponse{}, nil
	}

	names := make(map[string]string)
	out := make([]dto.ExpiringBatchResponse, 0, len(batches))
	for _, b := range batches {
		name, ok := names[b.ProductID]
		if !ok {
			p, err := uc.productRepo.GetByID(ctx, merchantID, b.ProductID)
			if err != nil {
				return nil, err
			}
			if p != nil {
				name = p.Name
			}
			names[b.ProductID] = name
		}
		left := daysBetween(today, *b.ExpiryDate)
		out = append(out, dto.ExpiringBatchResponse{
			BatchResponse: toBatchResponse(b),
			ProductName:   name,
			DaysToExpiry:  left,
			Expired:       left < 0,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DaysToExpiry != b.DaysToExpiry {
			return a.DaysToExpiry < b.DaysToExpiry
		}
		if !a.Free.Equal(b.Free) {
			return a.Free.GreaterThan(b.Free)
		}
		return a.ID < b.ID
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}

func daysBetween(from, to time.Time) int {
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(to.Sub(from).Hours() / 24))
}
