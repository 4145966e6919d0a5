package irp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/agro-pos-api/internal/application/compliance"
	"github.com/jhoicas/agro-pos-api/internal/domain"
	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
	"github.com/jhoicas/agro-pos-api/internal/domain/entity"
	"github.com/jhoicas/agro-pos-api/internal/domain/repository"
	"github.com/jhoicas/agro-pos-api/pkg/logger"
)

var _ compliance.Gateway = (*Client)(nil)

// Código de error que devuelve el IRP cuando una consulta no encuentra nada.
const codeNotFound = "2283"

const maxResponseBytes = 4 << 20

// Credentials son las credenciales IRP abiertas de un comercio. Nunca se loguean.
type Credentials struct {
	GSTIN        string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// ClientConfig configuración de red de un cliente.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration // por intercambio
	TokenSkew time.Duration // los tokens se descartan con esta anticipación a su vencimiento en el IRP
}

// ClientDeps se comparten entre los clientes de todos los comercios.
type ClientDeps struct {
	HTTP   *http.Client
	Tokens TokenCache
	// Flight unifica renovaciones de token concurrentes. Debe ser compartido.
	Flight *singleflight.Group
	Audit  repository.AuditRepository
	Log    *logger.Logger
	Clock  func() time.Time
}

// Client habla JSON sobre HTTP con el Invoice Registration Portal para un
// comercio. No se reintenta nada salvo la única reautenticación tras un 401,
// que el IRP responde antes de mirar la petición.
type Client struct {
	merchantID string
	creds      Credentials
	cfg        ClientConfig
	deps       ClientDeps
	log        *logger.Logger
	now        func() time.Time
}

// NewClient construye un cliente ligado a un comercio.
func NewClient(merchantID string, creds Credentials, cfg ClientConfig, deps ClientDeps) *Client {
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{}
	}
	if deps.Tokens == nil {
		deps.Tokens = NewMemoryTokenCache()
	}
	if deps.Flight == nil {
		deps.Flight = &singleflight.Group{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		merchantID: merchantID,
		creds:      creds,
		cfg:        cfg,
		deps:       deps,
		log:        deps.Log.Named("irp"),
		now:        now,
	}
}

type call struct {
	op     string
	saleID string
	method string
	path   string
	body   any
	token  string
	// absentOK marca consultas donde "no encontrado" es una respuesta, no un fallo.
	absentOK bool
}

type reply struct {
	status  int
	body    []byte
	auditID string
}

func (r reply) ok() bool { return r.status >= 200 && r.status < 300 }

func (c *Client) Generate(ctx context.Context, saleID string, doc *einvoice.Document) (*einvoice.Registration, error) {
	rep, err := c.authorized(ctx, call{
		op: entity.AuditOpGenerate, saleID: saleID,
		method: http.MethodPost, path: pathInvoice, body: toPayload(doc),
	})
	if err != nil {
		return nil, err
	}
	if !rep.ok() {
		return nil, c.failure(entity.AuditOpGenerate, rep)
	}
	var res registrationResult
	if err := json.Unmarshal(rep.body, &res); err != nil {
		return nil, &domain.AuthorityUnavailableError{Op: entity.AuditOpGenerate, Err: fmt.Errorf("malformed response: %w", err), AuditID: rep.auditID}
	}
	reg, err := toRegistration(&res, rep.auditID)
	if err != nil {
		// Aceptado pero ilegible: el resultado es desconocido y hay que conciliarlo.
		return nil, &domain.AuthorityUnavailableError{Op: entity.AuditOpGenerate, Err: err, AuditID: rep.auditID}
	}
	return reg, nil
}

func (c *Client) Cancel(ctx context.Context, saleID, irn string, reason einvoice.CancelReason, remarks string) (*einvoice.Cancellation, error) {
	rep, err := c.authorized(ctx, call{
		op: entity.AuditOpCancel, saleID: saleID,
		method: http.MethodPost, path: pathCancel,
		body: cancelRequest{Irn: irn, CnlRsn: string(reason), CnlRem: remarks},
	})
	if err != nil {
		return nil, err
	}
	if !rep.ok() {
		return nil, c.failure(entity.AuditOpCancel, rep)
	}
	var res cancelResult
	if err := json.Unmarshal(rep.body, &res); err != nil {
		return nil, &domain.AuthorityUnavailableError{Op: entity.AuditOpCancel, Err: fmt.Errorf("malformed response: %w", err), AuditID: rep.auditID}
	}
	at, err := parseAckDate(res.CancelDate)
	if err != nil {
		at = c.now()
	}
	if res.Irn == "" {
		res.Irn = irn
	}
	return &einvoice.Cancellation{IRN: res.Irn, CancelDate: at, AuditID: rep.auditID}, nil
}

func (c *Client) Fetch(ctx context.Context, saleID, irn string) (*einvoice.Registration, error) {
	return c.lookup(ctx, saleID, pathByIRN+url.PathEscape(irn))
}

func (c *Client) FetchByDocument(ctx context.Context, saleID string, l einvoice.Lookup) (*einvoice.Registration, error) {
	q := url.Values{}
	q.Set("doctype", l.Type)
	q.Set("docnum", l.Number)
	q.Set("docdate", l.Date.In(IST).Format(docDateLayout))
	return c.lookup(ctx, saleID, pathByDocDetail+"?"+q.Encode())
}

func (c *Client) lookup(ctx context.Context, saleID, path string) (*einvoice.Registration, error) {
	rep, err := c.authorized(ctx, call{
		op: entity.AuditOpVerify, saleID: saleID,
		method: http.MethodGet, path: path, absentOK: true,
	})
	if err != nil {
		return nil, err
	}
	if isAbsent(rep) {
		return nil, nil
	}
	if !rep.ok() {
		return nil, c.failure(entity.AuditOpVerify, rep)
	}
	var res registrationResult
	if err := json.Unmarshal(rep.body, &res); err != nil {
		return nil, &domain.AuthorityUnavailableError{Op: entity.AuditOpVerify, Err: fmt.Errorf("malformed response: %w", err), AuditID: rep.auditID}
	}
	reg, err := toRegistration(&res, rep.auditID)
	if err != nil {
		return nil, &domain.AuthorityUnavailableError{Op: entity.AuditOpVerify, Err: err, AuditID: rep.auditID}
	}
	return reg, nil
}

// authorized envía cl con un token de sesión. Ante un 401 se descarta el token y
// la llamada se repite una vez con uno nuevo.
func (c *Client) authorized(ctx context.Context, cl call) (reply, error) {
	token, err := c.token(ctx, cl.saleID)
	if err != nil {
		return reply{}, err
	}
	cl.token = token
	rep, err := c.send(ctx, cl)
	if err != nil || rep.status != http.StatusUnauthorized {
		return rep, err
	}

	c.invalidate(ctx, token)
	token, err = c.token(ctx, cl.saleID)
	if err != nil {
		return reply{}, err
	}
	cl.token = token
	return c.send(ctx, cl)
}

func (c *Client) cacheKey() string {
	return c.merchantID + ":" + c.creds.GSTIN + ":" + c.creds.Username
}

// token devuelve la sesión en caché o autentica. Llamadores concurrentes del
// mismo comercio comparten una autenticación.
func (c *Client) token(ctx context.Context, saleID string) (string, error) {
	key := c.cacheKey()
	if tok, err := c.deps.Tokens.Get(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("merchant_id", c.merchantID).Msg("token cache read failed")
	} else if tok != "" {
		return tok, nil
	}

	v, err, _ := c.deps.Flight.Do(key, func() (any, error) {
		// La cancelación del primer llamador no debe hacer fallar a los demás.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()
		if tok, err := c.deps.Tokens.Get(fctx, key); err == nil && tok != "" {
			return tok, nil
		}
		return c.authenticate(fctx, saleID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) invalidate(ctx context.Context, stale string) {
	key := c.cacheKey()
	cur, err := c.deps.Tokens.Get(ctx, key)
	if err != nil || cur != stale {
		return
	}
	if err := c.deps.Tokens.Delete(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("merchant_id", c.merchantID).Msg("token cache delete failed")
	}
}

func (c *Client) authenticate(ctx context.Context, saleID string) (string, error) {
	rep, err := c.send(ctx, call{
		op: entity.AuditOpAuthenticate, saleID: saleID,
		method: http.MethodPost, path: pathAuth,
		body: authRequest{
			Username:     c.creds.Username,
			Password:     c.creds.Password,
			ClientID:     c.creds.ClientID,
			ClientSecret: c.creds.ClientSecret,
			GrantType:    "password",
		},
	})
	if err != nil {
		return "", err
	}
	if !rep.ok() {
		if rep.status >= 500 {
			return "", c.failure(entity.AuditOpAuthenticate, rep)
		}
		_, msg := parseError(rep.body, rep.status)
		return "", &domain.AuthorityAuthError{Message: msg, AuditID: rep.auditID}
	}
	var res authResponse
	if err := json.Unmarshal(rep.body, &res); err != nil || res.AccessToken == "" {
		return "", &domain.AuthorityAuthError{Message: "no access token in response", AuditID: rep.auditID}
	}

	ttl := time.Duration(res.ExpiresIn)*time.Second - c.cfg.TokenSkew
	if ttl <= 0 {
		ttl = time.Duration(res.ExpiresIn) * time.Second / 2
	}
	if err := c.deps.Tokens.Set(ctx, c.cacheKey(), res.AccessToken, ttl); err != nil {
		c.log.Warn().Err(err).Str("merchant_id", c.merchantID).Msg("token cache write failed")
	}
	return res.AccessToken, nil
}

// send hace un intercambio HTTP y lo registra. Fallos de transporte y
// timeouts vuelven como *domain.AuthorityUnavailableError.
func (c *Client) send(ctx context.Context, cl call) (reply, error) {
	var reqBody []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return reply{}, fmt.Errorf("encode %s request: %w", cl.op, err)
		}
		reqBody = b
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, cl.method, c.cfg.BaseURL+cl.path, bytes.NewReader(reqBody))
	if err != nil {
		return reply{}, fmt.Errorf("build %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("gstin", c.creds.GSTIN)
	req.Header.Set("user_name", c.creds.Username)
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	start := c.now()
	resp, err := c.deps.HTTP.Do(req)
	var rep reply
	if err == nil {
		rep.status = resp.StatusCode
		rep.body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}
	elapsed := c.now().Sub(start)

	entry := &entity.AuditEntry{
		ID:         uuid.NewString(),
		MerchantID: c.merchantID,
		SaleID:     cl.saleID,
		Operation:  cl.op,
		HTTPStatus: rep.status,
		Request:    redact(reqBody),
		Response:   redact(rep.body),
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  c.now(),
	}
	entry.RequestDigest = digest(entry.Request)
	entry.ResponseDigest = digest(entry.Response)
	entry.Outcome, entry.ErrorMessage = classify(rep, err, cl.absentOK)
	rep.auditID = entry.ID
	c.record(ctx, entry)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("no response within %s: %w", c.cfg.Timeout, err)
		}
		return rep, &domain.AuthorityUnavailableError{Op: cl.op, Err: err, AuditID: entry.ID}
	}
	return rep, nil
}

func (c *Client) record(ctx context.Context, e *entity.AuditEntry) {
	var ev *zerolog.Event
	if e.Outcome == entity.AuditOutcomeSuccess {
		ev = c.log.Info()
	} else {
		ev = c.log.Warn().Str("error", e.ErrorMessage)
	}
	ev.Str("merchant_id", e.MerchantID).Str("sale_id", e.SaleID).Str("op", e.Operation).
		Str("outcome", e.Outcome).Int("http_status", e.HTTPStatus).Int64("duration_ms", e.DurationMS).
		Str("audit_id", e.ID).Msg("irp exchange")

	if c.deps.Audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.deps.Audit.Append(actx, e); err != nil {
		c.log.Error().Err(err).Str("merchant_id", e.MerchantID).Str("sale_id", e.SaleID).
			Str("op", e.Operation).Msg("audit append failed")
	}
}

func classify(rep reply, err error, absentOK bool) (outcome, message string) {
	switch {
	case err != nil:
		return entity.AuditOutcomeUnavailable, err.Error()
	case rep.ok():
		return entity.AuditOutcomeSuccess, ""
	case absentOK && isAbsent(rep):
		return entity.AuditOutcomeSuccess, "not found"
	}
	_, msg := parseError(rep.body, rep.status)
	switch {
	case rep.status == http.StatusUnauthorized || rep.status == http.StatusForbidden:
		return entity.AuditOutcomeAuthFailed, msg
	case retryableStatus(rep.status):
		return entity.AuditOutcomeUnavailable, msg
	default:
		return entity.AuditOutcomeRejected, msg
	}
}

// failure traduce una respuesta no 2xx a los errores de autoridad del dominio.
func (c *Client) failure(op string, rep reply) error {
	code, msg := parseError(rep.body, rep.status)
	switch {
	case rep.status == http.StatusUnauthorized || rep.status == http.StatusForbidden:
		return &domain.AuthorityAuthError{Message: msg, AuditID: rep.auditID}
	case retryableStatus(rep.status):
		return &domain.AuthorityUnavailableError{Op: op, Err: fmt.Errorf("HTTP %d: %s", rep.status, msg), AuditID: rep.auditID}
	default:
		return &domain.AuthorityRejectedError{Code: code, Message: msg, AuditID: rep.auditID}
	}
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func isAbsent(rep reply) bool {
	if rep.status == http.StatusNotFound {
		return true
	}
	if rep.ok() {
		return false
	}
	code, _ := parseError(rep.body, rep.status)
	return code == codeNotFound
}

func parseError(body []byte, status int) (code, message string) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != nil {
			code = eb.Error.Code
			message = eb.Error.Message
		}
		if message == "" {
			message = eb.Message
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return code, message
}
