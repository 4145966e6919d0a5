package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
	"github.com/jhoicas/agro-pos-api/pkg/jwt"
)

// JWTConfig configuración de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase da de alta comercios e inicia sesión de sus dueños.
type AuthUseCase struct {
	merchants repository.MerchantRepository
	jwtCfg    JWTConfig
	cost      int
	now       func() time.Time
}

// NewAuthUseCase construye el caso de uso.
func NewAuthUseCase(merchants repository.MerchantRepository, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{merchants: merchants, jwtCfg: jwtCfg, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithBcryptCost baja el costo del hash; solo para tests.
func (uc *AuthUseCase) WithBcryptCost(cost int) *AuthUseCase {
	uc.cost = cost
	return uc
}

// Register crea el comercio con el login de su dueño y devuelve un token.
// El email del dueño es único entre comercios (ErrDuplicate).
func (uc *AuthUseCase) Register(ctx context.Context, in dto.RegisterMerchantRequest) (*dto.LoginResponse, error) {
	state, ok := gst.NormalizeStateCode(in.StateCode)
	if !ok {
		return nil, &domain.InvalidTaxJurisdictionError{Party: "seller", Code: in.StateCode}
	}
	gstin := gst.NormalizeGSTIN(in.GSTIN)
	if gstin != "" {
		if err := gst.ValidateGSTIN(gstin); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		if gst.StateCodeOfGSTIN(gstin) != state {
			return nil, fmt.Errorf("%w: GSTIN %s belongs to state %s, not %s",
				domain.ErrInvalidInput, gstin, gst.StateCodeOfGSTIN(gstin), state)
		}
	}
	email := strings.ToLower(strings.TrimSpace(in.OwnerEmail))
	existing, err := uc.merchants.GetByOwnerEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := uc.now()
	m := &entity.Merchant{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		BusinessName: strings.TrimSpace(in.BusinessName),
		GSTIN:        gstin,
		StateCode:    state,
		Address:      in.Address,
		City:         in.City,
		Pincode:      in.Pincode,
		Phone:        in.Phone,
		Email:        in.Email,
		OwnerEmail:   email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.merchants.Create(ctx, m); err != nil {
		return nil, err
	}
	return uc.issue(m)
}

// Login verifica la contraseña del dueño y emite un token.
// Email desconocido y contraseña errónea no se distinguen (ErrUnauthorized).
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	m, err := uc.merchants.GetByOwnerEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return nil, err
	}
	if m == nil || m.PasswordHash == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("compare password: %w", err)
	}
	return uc.issue(m)
}

// Me devuelve el comercio en cuyo nombre actúa el token.
func (uc *AuthUseCase) Me(ctx context.Context, merchantID string) (*dto.MerchantResponse, error) {
	m, err := uc.merchants.GetByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	out := toMerchantResponse(m)
	return &out, nil
}

func (uc *AuthUseCase) issue(m *entity.Merchant) (*dto.LoginResponse, error) {
	token, err := jwt.Generate(uc.jwtCfg.Secret, m.OwnerEmail, m.ID, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, Merchant: toMerchantResponse(m)}, nil
}

func toMerchantResponse(m *entity.Merchant) dto.MerchantResponse {
	out := dto.MerchantResponse{
		ID:           m.ID,
		Name:         m.Name,
		BusinessName: m.BusinessName,
		GSTIN:        m.GSTIN,
		StateCode:    m.StateCode,
		Address:      m.Address,
		City:         m.City,
		Pincode:      m.Pincode,
		Phone:        m.Phone,
		Email:        m.Email,
		OwnerEmail:   m.OwnerEmail,
		CreatedAt:    m.CreatedAt,
	}
	if s, ok := gst.StateByCode(m.StateCode); ok {
		out.StateName = s.Name
	}
	return out
}
