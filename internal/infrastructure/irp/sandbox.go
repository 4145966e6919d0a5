package irp

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jhoicas/agro-pos-api/internal/domain/einvoice"
)

// Códigos de error con los que responde el sandbox, como el IRP.
const (
	sbCodeInvalidToken   = "1005"
	sbCodeGSTINMismatch  = "2211"
	sbCodeCancelExpired  = "2270"
	sbCodeInvalidPayload = "2172"
	sbCodeNotActive      = "9999"
)

// Sandbox reemplaza al IRP dentro del proceso: emite tokens, registra
// documentos con IRNs de forma real y payloads JWT firmados, y responde
// anulaciones y consultas. Se usa con IRP_ENV=dev y en los tests.
type Sandbox struct {
	mu      sync.Mutex
	tokens  map[string]time.Time
	regs    map[string]*sandboxReg // por IRN
	byDoc   map[string]string      // gstin|type|number|date -> IRN
	users   map[string]string      // usuario -> contraseña; vacío acepta cualquiera
	ackSeq  int64
	signKey []byte
	mux     *http.ServeMux

	TokenTTL     time.Duration
	CancelWindow time.Duration
	Now          func() time.Time
}

type sandboxReg struct {
	res        registrationResult
	gstin      string
	ackAt      time.Time
	cancelDate time.Time
}

// NewSandbox devuelve un sandbox vacío que acepta cualquier credencial.
func NewSandbox() *Sandbox {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	s := &Sandbox{
		tokens:       make(map[string]time.Time),
		regs:         make(map[string]*sandboxReg),
		byDoc:        make(map[string]string),
		users:        make(map[string]string),
		ackSeq:       112510000000000,
		signKey:      key,
		TokenTTL:     6 * time.Hour,
		CancelWindow: 24 * time.Hour,
		Now:          time.Now,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+pathAuth, s.handleAuth)
	mux.HandleFunc("POST "+pathInvoice, s.authorized(s.handleGenerate))
	mux.HandleFunc("POST "+pathCancel, s.authorized(s.handleCancel))
	mux.HandleFunc("GET "+pathByIRN+"{irn}", s.authorized(s.handleByIRN))
	mux.HandleFunc("GET "+pathByDocDetail, s.authorized(s.handleByDoc))
	s.mux = mux
	return s
}

// AddUser restringe la autenticación a los usuarios registrados.
func (s *Sandbox) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

// ExpireTokens invalida todos los tokens emitidos, como hace el IRP al reiniciar sesiones.
func (s *Sandbox) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]time.Time)
}

// Registrations indica cuántos documentos se registraron.
func (s *Sandbox) Registrations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regs)
}

// SignKey verifica los JWT de SignedInvoice y SignedQRCode.
func (s *Sandbox) SignKey() []byte { return s.signKey }

func (s *Sandbox) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Transport atiende las peticiones directo desde el sandbox, sin socket.
func (s *Sandbox) Transport() http.RoundTripper { return handlerTransport{h: s} }

func (s *Sandbox) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIRPError(w, http.StatusBadRequest, sbCodeInvalidPayload, "invalid request body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want, restricted := s.users[req.Username]
	if req.Username == "" || req.Password == "" || (len(s.users) > 0 && (!restricted || want != req.Password)) {
		writeIRPError(w, http.StatusUnauthorized, sbCodeInvalidToken, "Invalid login credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = s.Now().Add(s.TokenTTL)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.TokenTTL / time.Second),
		Scope:       "einvoice",
	})
}

func (s *Sandbox) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		exp, ok := s.tokens[token]
		valid := ok && s.Now().Before(exp)
		s.mu.Unlock()
		if !valid {
			writeIRPError(w, http.StatusUnauthorized, sbCodeInvalidToken, "Invalid Token")
			return
		}
		next(w, r)
	}
}

func (s *Sandbox) handleGenerate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeIRPError(w, http.StatusBadRequest, sbCodeInvalidPayload, "invalid request body")
		return
	}
	var p invoicePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.DocDtls.No == "" || len(p.ItemList) == 0 {
		writeIRPError(w, http.StatusBadRequest, sbCodeInvalidPayload, "invalid invoice payload")
		return
	}
	gstin := r.Header.Get("gstin")
	if p.SellerDtls.Gstin != gstin {
		writeIRPError(w, http.StatusBadRequest, sbCodeGSTINMismatch, "Seller GSTIN does not match the authenticated GSTIN")
		return
	}
	docDate, err := time.ParseInLocation(docDateLayout, p.DocDtls.Dt, IST)
	if err != nil {
		writeIRPError(w, http.StatusBadRequest, sbCodeInvalidPayload, "invalid document date")
		return
	}

	irn := sandboxIRN(gstin, p.DocDtls.Typ, p.DocDtls.No, docDate)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.regs[irn]; dup {
		writeIRPError(w, http.StatusBadRequest, einvoice.CodeDuplicateIRN, "Duplicate IRN")
		return
	}

	now := s.Now().In(IST)
	s.ackSeq++
	signedInvoice, err := s.sign(jwt.MapClaims{"data": string(raw), "iss": "NIC Sandbox", "iat": now.Unix()})
	if err != nil {
		writeIRPError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	qr, err := s.sign(jwt.MapClaims{
		"iss": "NIC Sandbox",
		"data": map[string]any{
			"SellerGstin": p.SellerDtls.Gstin,
			"BuyerGstin":  p.BuyerDtls.Gstin,
			"DocNo":       p.DocDtls.No,
			"DocTyp":      p.DocDtls.Typ,
			"DocDt":       p.DocDtls.Dt,
			"ItemCnt":     len(p.ItemList),
			"Irn":         irn,
		},
	})
	if err != nil {
		writeIRPError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	reg := &sandboxReg{
		res: registrationResult{
			AckNo:         json.Number(strconv.FormatInt(s.ackSeq, 10)),
			AckDt:         now.Format(ackDateLayout),
			Irn:           irn,
			SignedInvoice: signedInvoice,
			SignedQRCode:  qr,
			Status:        einvoice.RemoteActive,
		},
		gstin: gstin,
		ackAt: now,
	}
	s.regs[irn] = reg
	s.byDoc[docKey(gstin, p.DocDtls.Typ, p.DocDtls.No, p.DocDtls.Dt)] = irn
	writeJSON(w, http.StatusOK, reg.res)
}

func (s *Sandbox) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Irn == "" || strings.TrimSpace(req.CnlRem) == "" {
		writeIRPError(w, http.StatusBadRequest, sbCodeInvalidPayload, "Irn, CnlRsn and CnlRem are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[req.Irn]
	if !ok || reg.gstin != r.Header.Get("gstin") {
		writeIRPError(w, http.StatusNotFound, codeNotFound, "IRN details are not found")
		return
	}
	if reg.res.Status != einvoice.RemoteActive {
		writeIRPError(w, http.StatusBadRequest, sbCodeNotActive, "Invoice is not active")
		return
	}
	now := s.Now().In(IST)
	if s.CancelWindow > 0 && now.Sub(reg.ackAt) > s.CancelWindow {
		writeIRPError(w, http.StatusBadRequest, sbCodeCancelExpired, "The allowed cancellation time limit is crossed")
		return
	}
	reg.res.Status = einvoice.RemoteCancelled
	reg.cancelDate = now
	writeJSON(w, http.StatusOK, cancelResult{Irn: req.Irn, CancelDate: now.Format(ackDateLayout)})
}

func (s *Sandbox) handleByIRN(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[r.PathValue("irn")]
	if !ok || reg.gstin != r.Header.Get("gstin") {
		writeIRPError(w, http.StatusNotFound, codeNotFound, "IRN details are not found")
		return
	}
	writeJSON(w, http.StatusOK, reg.res)
}

func (s *Sandbox) handleByDoc(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := docKey(r.Header.Get("gstin"), q.Get("doctype"), q.Get("docnum"), q.Get("docdate"))
	s.mu.Lock()
	defer s.mu.Unlock()
	irn, ok := s.byDoc[key]
	if !ok {
		writeIRPError(w, http.StatusNotFound, codeNotFound, "IRN details are not found")
		return
	}
	writeJSON(w, http.StatusOK, s.regs[irn].res)
}

func (s *Sandbox) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// sandboxIRN hace hash del GSTIN del proveedor, año fiscal, tipo y número de documento
// como el IRP deriva el IRN de 64 caracteres.
func sandboxIRN(gstin, docType, number string, docDate time.Time) string {
	sum := sha256.Sum256([]byte(gstin + financialYear(docDate) + docType + number))
	return hex.EncodeToString(sum[:])
}

// financialYear va de abril a marzo, p. ej. "2025-26".
func financialYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

func docKey(gstin, docType, number, date string) string {
	return gstin + "|" + strings.ToUpper(docType) + "|" + number + "|" + date
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeIRPError(w http.ResponseWriter, status int, code, message string) {
	body := errorBody{Message: message}
	if code != "" {
		body.Error = &struct {
			Code    string `json:"error_cd"`
			Message string `json:"message"`
		}{Code: code, Message: message}
	}
	writeJSON(w, status, body)
}

type handlerTransport struct {
	h http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	in := req.Clone(req.Context())
	if in.Body == nil {
		in.Body = http.NoBody
	}
	rec := &recorder{header: make(http.Header), code: http.StatusOK}
	t.h.ServeHTTP(rec, in)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", rec.code, http.StatusText(rec.code)),
		StatusCode:    rec.code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rec.header,
		Body:          io.NopCloser(bytes.NewReader(rec.body.Bytes())),
		ContentLength: int64(rec.body.Len()),
		Request:       req,
	}, nil
}

type recorder struct {
	header      http.Header
	code        int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.code = code
	r.wroteHeader = true
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(b)
}
