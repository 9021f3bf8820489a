// Package payment verifies externally collected payments.  The service
// never touches card details: clients pay through a provider's checkout
// and hand the resulting reference to the redeem endpoint, which asks
// the provider whether that reference really was paid, for how much,
// in which currency, and for what (event, buyer, optional gift list
// carried in the charge metadata).
package payment

import (
    "context"
    "errors"
)

// Method tags accepted by the redeem endpoint.  They select which
// verifier checks the reference.
const (
    MethodPaystack    = "paystack"
    MethodFlutterwave = "flutterwave"
)

// ErrVerificationFailed means the provider reported the charge as not
// successful, or returned no usable payload for the reference.
var ErrVerificationFailed = errors.New("payment verification failed")

// ErrUnknownMethod means the redeem request named a provider this
// deployment has no verifier for.
var ErrUnknownMethod = errors.New("unknown payment method")

// GiftRecipient is one entry of the gift list a buyer attached to the
// charge metadata at checkout.
type GiftRecipient struct {
    Email string `json:"email"`
    Name  string `json:"name"`
}

// VerifiedPayment is the provider's answer for a successful charge.
// Amount is in the currency's minor unit, exactly as the provider
// reports it.  Recipients is nil for a self purchase.
type VerifiedPayment struct {
    BuyerID    uint64
    EventID    uint64
    Amount     int64
    Currency   string
    Recipients []GiftRecipient
}

// Verifier checks a payment reference with one provider.
type Verifier interface {
    Verify(ctx context.Context, reference string) (*VerifiedPayment, error)
}

// Registry routes a method tag to its verifier.
type Registry struct {
    verifiers map[string]Verifier
}

// NewRegistry builds a registry from the given method->verifier map.
// Entries with nil verifiers (e.g. a provider with no configured key)
// are dropped.
func NewRegistry(verifiers map[string]Verifier) *Registry {
    m := make(map[string]Verifier, len(verifiers))
    for k, v := range verifiers {
        if v != nil {
            m[k] = v
        }
    }
    return &Registry{verifiers: m}
}

// Lookup returns the verifier for a method tag.
func (r *Registry) Lookup(method string) (Verifier, error) {
    v, ok := r.verifiers[method]
    if !ok {
        return nil, ErrUnknownMethod
    }
    return v, nil
}
