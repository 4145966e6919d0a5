package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// CustomerUseCase registra los compradores a los que factura un comercio.
type CustomerUseCase struct {
	repo repository.CustomerRepository
	now  func() time.Time
}

// NewCustomerUseCase construye el caso de uso.
func NewCustomerUseCase(repo repository.CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{repo: repo, now: time.Now}
}

// Create guarda un comprador. El estado se toma del GSTIN cuando solo llega
// el GSTIN; un comprador sin ninguno queda sin estado y el registro de ventas
// lo resuelve por política.
func (uc *CustomerUseCase) Create(ctx context.Context, merchantID string, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	gstin := gst.NormalizeGSTIN(in.GSTIN)
	state := ""
	if strings.TrimSpace(in.StateCode) != "" {
		code, ok := gst.NormalizeStateCode(in.StateCode)
		if !ok {
			return nil, &domain.InvalidTaxJurisdictionError{Party: "buyer", Code: in.StateCode}
		}
		state = code
	}
	if gstin != "" {
		if err := gst.ValidateGSTIN(gstin); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		switch prefix := gst.StateCodeOfGSTIN(gstin); {
		case state == "":
			state = prefix
		case state != prefix:
			return nil, fmt.Errorf("%w: GSTIN %s belongs to state %s, not %s", domain.ErrInvalidInput, gstin, prefix, state)
		}
	}

	now := uc.now()
	c := &entity.Customer{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		Name:       strings.TrimSpace(in.Name),
		GSTIN:      gstin,
		StateCode:  state,
		Address:    in.Address,
		City:       in.City,
		Pincode:    in.Pincode,
		Phone:      in.Phone,
		Email:      in.Email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return toCustomerResponse(c), nil
}

// Get devuelve ErrNotFound para ids desconocidos y compradores de otros comercios.
func (uc *CustomerUseCase) Get(ctx context.Context, merchantID, id string) (*dto.CustomerResponse, error) {
	c, err := uc.repo.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return toCustomerResponse(c), nil
}

func toCustomerResponse(c *entity.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:         c.ID,
		MerchantID: c.MerchantID,
		Name:       c.Name,
		GSTIN:      c.GSTIN,
		StateCode:  c.StateCode,
		Address:    c.Address,
		City:       c.City,
		Pincode:    c.Pincode,
		Phone:      c.Phone,
		Email:      c.Email,
		CreatedAt:  c.CreatedAt,
	}
}
