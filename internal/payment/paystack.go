package payment

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"
)

// PaystackVerifier checks references against the Paystack transaction
// verify endpoint.  The buyer, event and gift list travel in the charge
// metadata the frontend sets at checkout, so verification needs no
// second lookup.
type PaystackVerifier struct {
    secretKey string
    baseURL   string
    client    *http.Client
}

// NewPaystackVerifier builds a verifier using the given secret key.
// Returns nil when no key is configured, which drops paystack from the
// registry.
func NewPaystackVerifier(secretKey string) *PaystackVerifier {
    if secretKey == "" {
        return nil
    }
    return &PaystackVerifier{
        secretKey: secretKey,
        baseURL:   "https://api.paystack.co",
        // Provider round trips get a hard cap so a slow gateway surfaces
        // as a verification failure instead of a hung request.
        client: &http.Client{Timeout: 15 * time.Second},
    }
}

type paystackMetadata struct {
    UserID     uint64          `json:"user_id,string"`
    EventID    uint64          `json:"event_id,string"`
    Recipients []GiftRecipient `json:"gift_recipients,omitempty"`
}

type paystackVerifyResponse struct {
    Status bool `json:"status"`
    Data   struct {
        Status   string           `json:"status"`
        Amount   int64            `json:"amount"`
        Currency string           `json:"currency"`
        Metadata paystackMetadata `json:"metadata"`
    } `json:"data"`
}

// Verify calls GET /transaction/verify/:reference and maps the payload
// into a VerifiedPayment.  Any non-success charge status collapses to
// ErrVerificationFailed; the caller does not distinguish provider
// failure modes.
func (v *PaystackVerifier) Verify(ctx context.Context, reference string) (*VerifiedPayment, error) {
    url := fmt.Sprintf("%s/transaction/verify/%s", v.baseURL, reference)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Authorization", "Bearer "+v.secretKey)

    resp, err := v.client.Do(req)
    if err != nil {
        return nil, fmt.Errorf("paystack verify: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return nil, ErrVerificationFailed
    }

    var body paystackVerifyResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("paystack verify decode: %w", err)
    }
    if !body.Status || body.Data.Status != "success" {
        return nil, ErrVerificationFailed
    }
    if body.Data.Metadata.UserID == 0 || body.Data.Metadata.EventID == 0 {
        return nil, ErrVerificationFailed
    }
    return &VerifiedPayment{
        BuyerID:    body.Data.Metadata.UserID,
        EventID:    body.Data.Metadata.EventID,
        Amount:     body.Data.Amount,
        Currency:   body.Data.Currency,
        Recipients: body.Data.Metadata.Recipients,
    }, nil
}
