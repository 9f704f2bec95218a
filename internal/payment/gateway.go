package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	intconfig "busticket/internal/config"
	"busticket/internal/domain"
	"busticket/internal/utils"
)

// Initiation is what a provider returns once a collection request is accepted.
type Initiation struct {
	TransactionID string
}

// Provider is one mobile-money rail. Implementations must be safe for
// concurrent use.
type Provider interface {
	Method() domain.PaymentMethod
	InitiatePayment(ctx context.Context, amount int64, phone, reference string) (Initiation, error)
	CheckStatus(ctx context.Context, transactionID string) (domain.ProviderStatus, error)
	ValidatePhone(phone string) (string, error)
}

// Error is a transport or protocol failure talking to a provider.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry maps a payment method to its provider.
type Registry struct {
	providers map[domain.PaymentMethod]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[domain.PaymentMethod]Provider{}}
	for _, p := range providers {
		r.providers[p.Method()] = p
	}
	return r
}

// Get returns a ValidationError when no provider serves the method.
func (r *Registry) Get(method domain.PaymentMethod) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[method]; ok {
			return p, nil
		}
	}
	return nil, domain.ValidationError{Field: "paymentMethod", Msg: fmt.Sprintf("no provider for %s", method)}
}

// NewRegistryFromEnv wires live providers when PAYMENT_MODE=live and the
// in-memory sandbox otherwise.
func NewRegistryFromEnv(env intconfig.Env) *Registry {
	if env.PaymentMode != "live" {
		return NewRegistry(NewSandboxProvider(domain.PaymentMTN), NewSandboxProvider(domain.PaymentAirtel))
	}
	client := &http.Client{Timeout: 20 * time.Second}
	return NewRegistry(
		NewMTNProvider(env.MTN, client),
		NewAirtelProvider(env.Airtel, client),
	)
}

// validateLocalPhone normalizes phone and checks it is a 9-digit Congo
// number starting with prefix.
func validateLocalPhone(phone, prefix string, method domain.PaymentMethod) (string, error) {
	p := utils.NormalizePhone(phone)
	if p == "" {
		return "", domain.ValidationError{Field: "phone", Msg: "required for mobile money"}
	}
	if len(p) != 9 || strings.Trim(p, "0123456789") != "" {
		return "", domain.ValidationError{Field: "phone", Msg: "must be a 9-digit number"}
	}
	if !strings.HasPrefix(p, prefix) {
		return "", domain.ValidationError{Field: "phone", Msg: fmt.Sprintf("%s numbers start with %s", method, prefix)}
	}
	return p, nil
}
