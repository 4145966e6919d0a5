package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-pos-api/internal/application/dto"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/gst"
)

// Sealer cifra las credenciales antes de guardarlas.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// SettingsUseCase administra la configuración de factura electrónica de un comercio.
type SettingsUseCase struct {
	configs repository.EInvoiceConfigRepository
	sealer  Sealer
	now     func() time.Time
}

func NewSettingsUseCase(configs repository.EInvoiceConfigRepository, sealer Sealer) *SettingsUseCase {
	return &SettingsUseCase{configs: configs, sealer: sealer, now: time.Now}
}

// Get devuelve la configuración sin secretos, ErrNotFound si no se guardó ninguna.
func (uc *SettingsUseCase) Get(ctx context.Context, merchantID string) (*dto.EInvoiceConfigResponse, error) {
	cfg, err := uc.configs.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrNotFound
	}
	return toConfigResponse(cfg), nil
}

// Save valida y guarda la configuración, sellando cualquier secreto nuevo.
func (uc *SettingsUseCase) Save(ctx context.Context, merchantID string, in dto.EInvoiceConfigRequest) (*dto.EInvoiceConfigResponse, error) {
	gstin := gst.NormalizeGSTIN(in.GSTIN)
	if err := gst.ValidateGSTIN(gstin); err != nil {
		return nil, fmt.Errorf("%w: gstin: %v", domain.ErrInvalidInput, err)
	}

	existing, err := uc.configs.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	cfg := &entity.EInvoiceConfig{MerchantID: merchantID, CreatedAt: now}
	if existing != nil {
		cfg.CreatedAt = existing.CreatedAt
		cfg.PasswordSealed = existing.PasswordSealed
		cfg.ClientSecretSealed = existing.ClientSecretSealed
	}
	cfg.Enabled = in.Enabled
	cfg.GSTIN = gstin
	cfg.Username = strings.TrimSpace(in.Username)
	cfg.ClientID = strings.TrimSpace(in.ClientID)
	cfg.BaseURL = strings.TrimSpace(in.BaseURL)
	cfg.AutoGenerate = in.AutoGenerate
	cfg.UpdatedAt = now

	if in.ThresholdOverride != "" {
		t, err := decimal.NewFromString(in.ThresholdOverride)
		if err != nil || t.IsNegative() {
			return nil, fmt.Errorf("%w: threshold_override must be a non-negative amount", domain.ErrInvalidInput)
		}
		cfg.ThresholdOverride = decimal.NewNullDecimal(t)
	}
	if in.Password != "" {
		if cfg.PasswordSealed, err = uc.sealer.Seal(in.Password); err != nil {
			return nil, fmt.Errorf("seal password: %w", err)
		}
	}
	if in.ClientSecret != "" {
		if cfg.ClientSecretSealed, err = uc.sealer.Seal(in.ClientSecret); err != nil {
			return nil, fmt.Errorf("seal client secret: %w", err)
		}
	}
	if cfg.Enabled && (cfg.PasswordSealed == "" || cfg.ClientSecretSealed == "") {
		return nil, fmt.Errorf("%w: password and client_secret are required to enable e-invoicing", domain.ErrInvalidInput)
	}

	if err := uc.configs.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	return toConfigResponse(cfg), nil
}

func toConfigResponse(cfg *entity.EInvoiceConfig) *dto.EInvoiceConfigResponse {
	out := &dto.EInvoiceConfigResponse{
		Enabled:         cfg.Enabled,
		GSTIN:           cfg.GSTIN,
		Username:        cfg.Username,
		ClientID:        cfg.ClientID,
		PasswordSet:     cfg.PasswordSealed != "",
		ClientSecretSet: cfg.ClientSecretSealed != "",
		BaseURL:         cfg.BaseURL,
		AutoGenerate:    cfg.AutoGenerate,
		UpdatedAt:       cfg.UpdatedAt.Format(time.RFC3339),
	}
	if cfg.ThresholdOverride.Valid {
		out.ThresholdOverride = cfg.ThresholdOverride.Decimal.StringFixed(2)
	}
	return out
}
