package payment

import (
    "context"
    "encoding/json"
    "fmt"
    "math"
    "net/http"
    "time"
)

// FlutterwaveVerifier checks references against the Flutterwave
// transaction verify endpoint.  Same metadata contract as paystack:
// buyer, event and gift list are set by the frontend at checkout.
type FlutterwaveVerifier struct {
    secretKey string
    baseURL   string
    client    *http.Client
}

// NewFlutterwaveVerifier builds a verifier using the given secret key,
// or nil when no key is configured.
func NewFlutterwaveVerifier(secretKey string) *FlutterwaveVerifier {
    if secretKey == "" {
        return nil
    }
    return &FlutterwaveVerifier{
        secretKey: secretKey,
        baseURL:   "https://api.flutterwave.com/v3",
        client:    &http.Client{Timeout: 15 * time.Second},
    }
}

type flutterwaveVerifyResponse struct {
    Status string `json:"status"`
    Data   struct {
        Status   string  `json:"status"`
        Amount   float64 `json:"amount"`
        Currency string  `json:"currency"`
        Meta     struct {
            UserID     uint64          `json:"user_id,string"`
            EventID    uint64          `json:"event_id,string"`
            Recipients []GiftRecipient `json:"gift_recipients,omitempty"`
        } `json:"meta"`
    } `json:"data"`
}

// Verify calls GET /transactions/verify_by_reference and maps the
// payload into a VerifiedPayment.  Flutterwave reports amounts in major
// units, so the value is scaled to minor units before comparison with
// event prices.
func (v *FlutterwaveVerifier) Verify(ctx context.Context, reference string) (*VerifiedPayment, error) {
    url := fmt.Sprintf("%s/transactions/verify_by_reference?tx_ref=%s", v.baseURL, reference)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return nil, err
    }
    req.Header.Set("Authorization", "Bearer "+v.secretKey)

    resp, err := v.client.Do(req)
    if err != nil {
        return nil, fmt.Errorf("flutterwave verify: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return nil, ErrVerificationFailed
    }

    var body flutterwaveVerifyResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("flutterwave verify decode: %w", err)
    }
    if body.Status != "success" || body.Data.Status != "successful" {
        return nil, ErrVerificationFailed
    }
    if body.Data.Meta.UserID == 0 || body.Data.Meta.EventID == 0 {
        return nil, ErrVerificationFailed
    }
    return &VerifiedPayment{
        BuyerID:    body.Data.Meta.UserID,
        EventID:    body.Data.Meta.EventID,
        // Scaling by 100 in float64 can land just under the integer
        // (19.99*100 = 1998.999...), so round instead of truncating or
        // a correctly paid charge fails the exact price check.
        Amount:     int64(math.Round(body.Data.Amount * 100)),
        Currency:   body.Data.Currency,
        Recipients: body.Data.Meta.Recipients,
    }, nil
}
