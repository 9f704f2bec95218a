package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	intconfig "busticket/internal/config"
	"busticket/internal/domain"
)

const mtnName = "mtn"

// MTNProvider talks to the MTN MoMo Collection API.
type MTNProvider struct {
	cfg    intconfig.MTNEnv
	client *http.Client
	tokens tokenCache
	newID  func() string
}

func NewMTNProvider(cfg intconfig.MTNEnv, client *http.Client) *MTNProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Currency == "" {
		cfg.Currency = "XAF"
	}
	return &MTNProvider{cfg: cfg, client: client, newID: uuid.NewString}
}

func (p *MTNProvider) Method() domain.PaymentMethod { return domain.PaymentMTN }

func (p *MTNProvider) ValidatePhone(phone string) (string, error) {
	return validateLocalPhone(phone, "06", domain.PaymentMTN)
}

type mtnTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *MTNProvider) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", 0, &Error{Provider: mtnName, Op: "token", Err: err}
	}
	req.SetBasicAuth(p.cfg.UserID, p.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)

	var out mtnTokenResponse
	if err := p.do(req, "token", &out, http.StatusOK); err != nil {
		return "", 0, err
	}
	if out.AccessToken == "" {
		return "", 0, &Error{Provider: mtnName, Op: "token", Err: fmt.Errorf("empty access token")}
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnParty `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

// InitiatePayment sends a request-to-pay. The X-Reference-Id we generate is
// the transaction id used for status checks.
func (p *MTNProvider) InitiatePayment(ctx context.Context, amount int64, phone, reference string) (Initiation, error) {
	msisdn, err := p.ValidatePhone(phone)
	if err != nil {
		return Initiation{}, err
	}
	token, err := p.tokens.get(ctx, p.fetchToken)
	if err != nil {
		return Initiation{}, err
	}

	body, err := json.Marshal(mtnRequestToPay{
		Amount:       strconv.FormatInt(amount, 10),
		Currency:     p.cfg.Currency,
		ExternalID:   reference,
		Payer:        mtnParty{PartyIDType: "MSISDN", PartyID: "242" + msisdn},
		PayerMessage: "Bus ticket " + reference,
		PayeeNote:    reference,
	})
	if err != nil {
		return Initiation{}, &Error{Provider: mtnName, Op: "requesttopay", Err: err}
	}

	txID := p.newID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(body))
	if err != nil {
		return Initiation{}, &Error{Provider: mtnName, Op: "requesttopay", Err: err}
	}
	p.authHeaders(req, token)
	req.Header.Set("X-Reference-Id", txID)
	req.Header.Set("Content-Type", "application/json")

	if err := p.do(req, "requesttopay", nil, http.StatusAccepted, http.StatusOK); err != nil {
		return Initiation{}, err
	}
	return Initiation{TransactionID: txID}, nil
}

type mtnStatusResponse struct {
	Status string `json:"status"`
	Reason any    `json:"reason,omitempty"`
}

func (p *MTNProvider) CheckStatus(ctx context.Context, transactionID string) (domain.ProviderStatus, error) {
	token, err := p.tokens.get(ctx, p.fetchToken)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/collection/v1_0/requesttopay/"+transactionID, nil)
	if err != nil {
		return "", &Error{Provider: mtnName, Op: "status", Err: err}
	}
	p.authHeaders(req, token)

	var out mtnStatusResponse
	if err := p.do(req, "status", &out, http.StatusOK); err != nil {
		return "", err
	}
	switch out.Status {
	case "SUCCESSFUL":
		return domain.ProviderSuccessful, nil
	case "FAILED", "REJECTED", "TIMEOUT":
		return domain.ProviderFailed, nil
	default:
		return domain.ProviderPending, nil
	}
}

func (p *MTNProvider) authHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", p.cfg.TargetEnv)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)
}

func (p *MTNProvider) do(req *http.Request, op string, out any, okCodes ...int) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Provider: mtnName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && op != "token" {
		p.tokens.reset()
	}
	if !statusIn(resp.StatusCode, okCodes) {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Provider: mtnName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", bytes.TrimSpace(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Provider: mtnName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func statusIn(code int, codes []int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
