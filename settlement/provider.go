/*
provider.go - External payment session provider boundary

PURPOSE:
  Settlement never moves money itself. It opens a session with an opaque
  external provider and waits for the caller to report confirmation. A
  session that is created but never confirmed leaves the booking in its
  prior state indefinitely; the engine must not assume confirmation
  follows initiation.

SEE ALSO:
  - service.go: the only caller of CreateSession
*/
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is the redirect handle returned by the provider.
type Session struct {
	ID        string          `json:"id"`
	URL       string          `json:"url"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

// Provider opens external payment sessions. Reference is the booking or
// installment id the session settles.
type Provider interface {
	CreateSession(ctx context.Context, reference string, amount decimal.Decimal) (*Session, error)
}

// ErrPaymentInitiation is returned when the provider cannot create a
// session. The booking remains unchanged.
var ErrPaymentInitiation = errors.New("payment session could not be created")

// PaymentInitiationError wraps the provider failure.
type PaymentInitiationError struct {
	Reference string
	Cause     error
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("failed to create payment session for %s: %v", e.Reference, e.Cause)
}

func (e *PaymentInitiationError) Unwrap() error { return ErrPaymentInitiation }

// =============================================================================
// REDIRECT PROVIDER - default implementation
// =============================================================================

// RedirectProvider issues session handles pointing at a hosted checkout
// page. It performs no network call of its own; the hosted page reports
// back through the confirm endpoints.
type RedirectProvider struct {
	BaseURL string
}

func NewRedirectProvider(baseURL string) *RedirectProvider {
	return &RedirectProvider{BaseURL: baseURL}
}

func (p *RedirectProvider) CreateSession(ctx context.Context, reference string, amount decimal.Decimal) (*Session, error) {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		URL:       fmt.Sprintf("%s/checkout/%s", p.BaseURL, id),
		Reference: reference,
		Amount:    amount,
	}, nil
}

var _ Provider = (*RedirectProvider)(nil)
