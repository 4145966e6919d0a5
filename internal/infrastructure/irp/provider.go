package irp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

var _ compliance.GatewayProvider = (*Provider)(nil)

// Entornos seleccionados por IRP_ENV.
const (
	EnvDev     = "dev" // sandbox en proceso, nada sale del proceso
	EnvSandbox = "sandbox"
	EnvProd    = "prod"
)

// Opener descifra credenciales selladas en reposo.
type Opener interface {
	Open(sealed string) (string, error)
}

// ProviderConfig configuración IRP global; la URL base de un comercio reemplaza BaseURL.
type ProviderConfig struct {
	Env       string
	BaseURL   string
	Timeout   time.Duration
	TokenSkew time.Duration
}

// Provider construye un Client por comercio desde su configuración guardada. Todos
// los clientes comparten la caché de tokens y el grupo single-flight.
type Provider struct {
	cfg     ProviderConfig
	configs repository.EInvoiceConfigRepository
	opener  Opener
	deps    ClientDeps
	sandbox *Sandbox
}

// NewProvider arma el provider. Con Env dev todos los clientes hablan con un
// único Sandbox en proceso.
func NewProvider(cfg ProviderConfig, configs repository.EInvoiceConfigRepository, opener Opener, tokens TokenCache, audit repository.AuditRepository, log *logger.Logger) *Provider {
	p := &Provider{
		cfg:     cfg,
		configs: configs,
		opener:  opener,
		deps: ClientDeps{
			HTTP:   &http.Client{Timeout: cfg.Timeout + 5*time.Second},
			Tokens: tokens,
			Flight: &singleflight.Group{},
			Audit:  audit,
			Log:    log,
		},
	}
	if cfg.Env == EnvDev {
		p.sandbox = NewSandbox()
		p.deps.HTTP = &http.Client{Transport: p.sandbox.Transport()}
		p.cfg.BaseURL = "http://irp.sandbox.local"
	}
	return p
}

// Sandbox es la autoridad en proceso en modo dev, nil en otro caso.
func (p *Provider) Sandbox() *Sandbox { return p.sandbox }

func (p *Provider) ForMerchant(ctx context.Context, merchantID string) (compliance.Gateway, error) {
	cfg, err := p.configs.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("%w: e-invoicing is not configured for this merchant", domain.ErrInvalidInput)
	}
	password, err := p.opener.Open(cfg.PasswordSealed)
	if err != nil {
		return nil, fmt.Errorf("open IRP password: %w", err)
	}
	clientSecret, err := p.opener.Open(cfg.ClientSecretSealed)
	if err != nil {
		return nil, fmt.Errorf("open IRP client secret: %w", err)
	}

	baseURL := p.cfg.BaseURL
	if cfg.BaseURL != "" && p.sandbox == nil {
		baseURL = cfg.BaseURL
	}
	return NewClient(merchantID, Credentials{
		GSTIN:        cfg.GSTIN,
		Username:     cfg.Username,
		Password:     password,
		ClientID:     cfg.ClientID,
		ClientSecret: clientSecret,
	}, ClientConfig{
		BaseURL:   baseURL,
		Timeout:   p.cfg.Timeout,
		TokenSkew: p.cfg.TokenSkew,
	}, p.deps), nil
}
