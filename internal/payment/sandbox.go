package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"busticket/internal/domain"
)

// ErrSandboxUnknownTransaction is returned by CheckStatus for ids the
// sandbox never issued.
var ErrSandboxUnknownTransaction = errors.New("sandbox: unknown transaction")

// SandboxProvider is an in-memory provider. Transactions stay PENDING until
// Settle is called or a script is queued with Script.
type SandboxProvider struct {
	method domain.PaymentMethod

	mu       sync.Mutex
	statuses map[string]domain.ProviderStatus
	scripts  map[string][]domain.ProviderStatus
	byRef    map[string]string

	// FailInitiate makes the next InitiatePayment calls fail with this error.
	FailInitiate error
	// AutoSettle, when set, is the status reported on the first check.
	AutoSettle domain.ProviderStatus
	// Initiated counts accepted initiations.
	Initiated int
	// Checks counts status checks.
	Checks int
}

func NewSandboxProvider(method domain.PaymentMethod) *SandboxProvider {
	return &SandboxProvider{
		method:   method,
		statuses: map[string]domain.ProviderStatus{},
		scripts:  map[string][]domain.ProviderStatus{},
		byRef:    map[string]string{},
	}
}

func (s *SandboxProvider) Method() domain.PaymentMethod { return s.method }

func (s *SandboxProvider) ValidatePhone(phone string) (string, error) {
	switch s.method {
	case domain.PaymentMTN:
		return validateLocalPhone(phone, "06", s.method)
	case domain.PaymentAirtel:
		return validateLocalPhone(phone, "05", s.method)
	default:
		return phone, nil
	}
}

func (s *SandboxProvider) InitiatePayment(ctx context.Context, amount int64, phone, reference string) (Initiation, error) {
	if err := ctx.Err(); err != nil {
		return Initiation{}, err
	}
	if _, err := s.ValidatePhone(phone); err != nil {
		return Initiation{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailInitiate != nil {
		return Initiation{}, &Error{Provider: "sandbox", Op: "initiate", Err: s.FailInitiate}
	}
	if amount <= 0 {
		return Initiation{}, &Error{Provider: "sandbox", Op: "initiate", Err: fmt.Errorf("amount must be positive")}
	}
	id := uuid.NewString()
	s.statuses[id] = domain.ProviderPending
	s.byRef[reference] = id
	s.Initiated++
	return Initiation{TransactionID: id}, nil
}

func (s *SandboxProvider) CheckStatus(ctx context.Context, transactionID string) (domain.ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Checks++
	if script := s.scripts[transactionID]; len(script) > 0 {
		next := script[0]
		s.scripts[transactionID] = script[1:]
		if next == "" {
			return "", &Error{Provider: "sandbox", Op: "status", Err: errors.New("sandbox: transient failure")}
		}
		s.statuses[transactionID] = next
		return next, nil
	}
	st, ok := s.statuses[transactionID]
	if !ok {
		return "", &Error{Provider: "sandbox", Op: "status", Err: ErrSandboxUnknownTransaction}
	}
	if st == domain.ProviderPending && s.AutoSettle != "" {
		s.statuses[transactionID] = s.AutoSettle
		return s.AutoSettle, nil
	}
	return st, nil
}

// Settle sets the final status of a transaction.
func (s *SandboxProvider) Settle(transactionID string, status domain.ProviderStatus) {
	s.mu.Lock()
	s.statuses[transactionID] = status
	s.mu.Unlock()
}

// Script queues statuses returned by successive checks of a transaction.
// An empty entry simulates a transient error.
func (s *SandboxProvider) Script(transactionID string, statuses ...domain.ProviderStatus) {
	s.mu.Lock()
	s.scripts[transactionID] = append(s.scripts[transactionID], statuses...)
	s.mu.Unlock()
}

// TransactionFor returns the transaction id issued for a booking reference.
func (s *SandboxProvider) TransactionFor(reference string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[reference]
	return id, ok
}

// Snapshot returns counters under the lock.
func (s *SandboxProvider) Snapshot() (initiated, checks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Initiated, s.Checks
}
