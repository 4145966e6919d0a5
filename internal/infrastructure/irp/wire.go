package irp

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Versión de esquema IRP enviada en cada payload.
const schemaVersion = "1.1"

// Formatos de fecha en el cable.
const (
	docDateLayout = "02/01/2006"
	ackDateLayout = "2006-01-02 15:04:05"
)

const (
	pathAuth        = "/v1.03/auth"
	pathInvoice     = "/v1.03/invoice"
	pathCancel      = "/v1.03/invoice/cancel"
	pathByIRN       = "/v1.03/invoice/irn/"
	pathByDocDetail = "/v1.03/invoice/irnbydocdetails"
)

// amount se serializa como número JSON con dos decimales.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

// quantity se serializa como número JSON con tres decimales.
type quantity decimal.Decimal

func (q quantity) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(q).StringFixed(3)), nil
}

func (q *quantity) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*q = quantity(d)
	return nil
}

type authRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

type invoicePayload struct {
	Version    string     `json:"Version"`
	TranDtls   tranDtls   `json:"TranDtls"`
	DocDtls    docDtls    `json:"DocDtls"`
	SellerDtls partyDtls  `json:"SellerDtls"`
	BuyerDtls  buyerDtls  `json:"BuyerDtls"`
	ItemList   []itemDtls `json:"ItemList"`
	ValDtls    valDtls    `json:"ValDtls"`
	PayDtls    *payDtls   `json:"PayDtls,omitempty"`
}

type tranDtls struct {
	TaxSch string `json:"TaxSch"`
	SupTyp string `json:"SupTyp"`
	RegRev string `json:"RegRev"`
}

type docDtls struct {
	Typ string `json:"Typ"`
	No  string `json:"No"`
	Dt  string `json:"Dt"`
}

type partyDtls struct {
	Gstin string `json:"Gstin"`
	LglNm string `json:"LglNm"`
	TrdNm string `json:"TrdNm,omitempty"`
	Addr1 string `json:"Addr1"`
	Addr2 string `json:"Addr2,omitempty"`
	Loc   string `json:"Loc"`
	Pin   int    `json:"Pin"`
	Stcd  string `json:"Stcd"`
	Ph    string `json:"Ph,omitempty"`
	Em    string `json:"Em,omitempty"`
}

type buyerDtls struct {
	partyDtls
	Pos string `json:"Pos"`
}

type itemDtls struct {
	SlNo       string   `json:"SlNo"`
	PrdDesc    string   `json:"PrdDesc"`
	IsServc    string   `json:"IsServc"`
	HsnCd      string   `json:"HsnCd"`
	Qty        quantity `json:"Qty"`
	Unit       string   `json:"Unit,omitempty"`
	UnitPrice  amount   `json:"UnitPrice"`
	TotAmt     amount   `json:"TotAmt"`
	Discount   amount   `json:"Discount"`
	AssAmt     amount   `json:"AssAmt"`
	GstRt      amount   `json:"GstRt"`
	IgstAmt    amount   `json:"IgstAmt"`
	CgstAmt    amount   `json:"CgstAmt"`
	SgstAmt    amount   `json:"SgstAmt"`
	TotItemVal amount   `json:"TotItemVal"`
	BchDtls    *bchDtls `json:"BchDtls,omitempty"`
}

type bchDtls struct {
	Nm    string `json:"Nm"`
	ExpDt string `json:"ExpDt,omitempty"`
}

type valDtls struct {
	AssVal    amount `json:"AssVal"`
	CgstVal   amount `json:"CgstVal"`
	SgstVal   amount `json:"SgstVal"`
	IgstVal   amount `json:"IgstVal"`
	RndOffAmt amount `json:"RndOffAmt"`
	TotInvVal amount `json:"TotInvVal"`
}

type payDtls struct {
	Mode     string `json:"Mode,omitempty"`
	PaidAmt  amount `json:"PaidAmt"`
	PaymtDue amount `json:"PaymtDue"`
}

// registrationResult es el cuerpo de éxito de generate y de ambas consultas.
type registrationResult struct {
	AckNo         json.Number `json:"AckNo"`
	AckDt         string      `json:"AckDt"`
	Irn           string      `json:"Irn"`
	SignedInvoice string      `json:"SignedInvoice"`
	SignedQRCode  string      `json:"SignedQRCode"`
	Status        string      `json:"Status"`
}

type cancelRequest struct {
	Irn    string `json:"Irn"`
	CnlRsn string `json:"CnlRsn"`
	CnlRem string `json:"CnlRem"`
}

type cancelResult struct {
	Irn        string `json:"Irn"`
	CancelDate string `json:"CancelDate"`
}

// errorBody es el sobre de error.
type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"error_cd"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
