package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	intconfig "busticket/internal/config"
	"busticket/internal/domain"
)

const airtelName = "airtel"

// AirtelProvider talks to the Airtel Money merchant API.
type AirtelProvider struct {
	cfg    intconfig.AirtelEnv
	client *http.Client
	tokens tokenCache
	newID  func() string
}

func NewAirtelProvider(cfg intconfig.AirtelEnv, client *http.Client) *AirtelProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Country == "" {
		cfg.Country = "CG"
	}
	if cfg.Currency == "" {
		cfg.Currency = "XAF"
	}
	return &AirtelProvider{cfg: cfg, client: client, newID: uuid.NewString}
}

func (p *AirtelProvider) Method() domain.PaymentMethod { return domain.PaymentAirtel }

func (p *AirtelProvider) ValidatePhone(phone string) (string, error) {
	return validateLocalPhone(phone, "05", domain.PaymentAirtel)
}

type airtelTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type airtelTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *AirtelProvider) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var out airtelTokenResponse
	err := p.postJSON(ctx, "token", "/auth/oauth2/token", "", airtelTokenRequest{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		GrantType:    "client_credentials",
	}, &out)
	if err != nil {
		return "", 0, err
	}
	if out.AccessToken == "" {
		return "", 0, &Error{Provider: airtelName, Op: "token", Err: fmt.Errorf("empty access token")}
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

type airtelSubscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Msisdn   string `json:"msisdn"`
}

type airtelTransaction struct {
	Amount   int64  `json:"amount"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	ID       string `json:"id"`
}

type airtelPaymentRequest struct {
	Reference   string            `json:"reference"`
	Subscriber  airtelSubscriber  `json:"subscriber"`
	Transaction airtelTransaction `json:"transaction"`
}

type airtelEnvelope struct {
	Data struct {
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Success bool   `json:"success"`
	} `json:"status"`
}

// InitiatePayment pushes a USSD collection. Our uuid is sent as the
// transaction id so status checks do not depend on the response body.
func (p *AirtelProvider) InitiatePayment(ctx context.Context, amount int64, phone, reference string) (Initiation, error) {
	msisdn, err := p.ValidatePhone(phone)
	if err != nil {
		return Initiation{}, err
	}
	token, err := p.tokens.get(ctx, p.fetchToken)
	if err != nil {
		return Initiation{}, err
	}

	txID := p.newID()
	var out airtelEnvelope
	err = p.postJSON(ctx, "payment", "/merchant/v1/payments/", token, airtelPaymentRequest{
		Reference:   reference,
		Subscriber:  airtelSubscriber{Country: p.cfg.Country, Currency: p.cfg.Currency, Msisdn: msisdn},
		Transaction: airtelTransaction{Amount: amount, Country: p.cfg.Country, Currency: p.cfg.Currency, ID: txID},
	}, &out)
	if err != nil {
		return Initiation{}, err
	}
	if !out.Status.Success {
		return Initiation{}, &Error{Provider: airtelName, Op: "payment", Err: fmt.Errorf("rejected: %s %s", out.Status.Code, out.Status.Message)}
	}
	return Initiation{TransactionID: txID}, nil
}

func (p *AirtelProvider) CheckStatus(ctx context.Context, transactionID string) (domain.ProviderStatus, error) {
	token, err := p.tokens.get(ctx, p.fetchToken)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/standard/v1/payments/"+transactionID, nil)
	if err != nil {
		return "", &Error{Provider: airtelName, Op: "status", Err: err}
	}
	p.headers(req, token)

	var out airtelEnvelope
	if err := p.do(req, "status", &out); err != nil {
		return "", err
	}
	switch out.Data.Transaction.Status {
	case "TS":
		return domain.ProviderSuccessful, nil
	case "TF":
		return domain.ProviderFailed, nil
	default:
		return domain.ProviderPending, nil
	}
}

func (p *AirtelProvider) postJSON(ctx context.Context, op, path, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Provider: airtelName, Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Provider: airtelName, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		p.headers(req, token)
	}
	return p.do(req, op, out)
}

func (p *AirtelProvider) headers(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Country", p.cfg.Country)
	req.Header.Set("X-Currency", p.cfg.Currency)
}

func (p *AirtelProvider) do(req *http.Request, op string, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Provider: airtelName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && op != "token" {
		p.tokens.reset()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Provider: airtelName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", bytes.TrimSpace(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Provider: airtelName, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
