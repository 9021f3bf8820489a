package payment

import (
    "context"
    "net/http"
    "net/http/httptest"
    "testing"
)

func TestPaystackVerifySuccess(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/transaction/verify/ref-1" {
            t.Errorf("unexpected path %s", r.URL.Path)
        }
        if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
            t.Errorf("unexpected auth header %q", got)
        }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{
            "status": true,
            "data": {
                "status": "success",
                "amount": 500000,
                "currency": "NGN",
                "metadata": {
                    "user_id": "7",
                    "event_id": "3",
                    "gift_recipients": [{"email": "ada@example.com", "name": "Ada"}]
                }
            }
        }`))
    }))
    defer srv.Close()

    v := NewPaystackVerifier("sk_test")
    v.baseURL = srv.URL

    vp, err := v.Verify(context.Background(), "ref-1")
    if err != nil {
        t.Fatalf("Verify: %v", err)
    }
    if vp.BuyerID != 7 || vp.EventID != 3 {
        t.Fatalf("metadata not decoded: %+v", vp)
    }
    if vp.Amount != 500000 || vp.Currency != "NGN" {
        t.Fatalf("amount not preserved: %+v", vp)
    }
    if len(vp.Recipients) != 1 || vp.Recipients[0].Email != "ada@example.com" {
        t.Fatalf("gift list lost: %+v", vp.Recipients)
    }
}

func TestPaystackVerifyRejectsFailedCharge(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{"status": true, "data": {"status": "abandoned"}}`))
    }))
    defer srv.Close()

    v := NewPaystackVerifier("sk_test")
    v.baseURL = srv.URL

    if _, err := v.Verify(context.Background(), "ref-1"); err != ErrVerificationFailed {
        t.Fatalf("expected ErrVerificationFailed, got %v", err)
    }
}

func TestPaystackVerifyRequiresMetadata(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte(`{"status": true, "data": {"status": "success", "amount": 500000, "currency": "NGN"}}`))
    }))
    defer srv.Close()

    v := NewPaystackVerifier("sk_test")
    v.baseURL = srv.URL

    if _, err := v.Verify(context.Background(), "ref-1"); err != ErrVerificationFailed {
        t.Fatalf("expected ErrVerificationFailed for missing metadata, got %v", err)
    }
}

func TestFlutterwaveScalesToMinorUnits(t *testing.T) {
    // Flutterwave reports major units; the rest of the system compares
    // minor units.  The fractional amounts are ones whose float64
    // product lands just under the integer (19.99*100 = 1998.999...),
    // which a plain int64 truncation under-reports by one minor unit.
    cases := []struct {
        amount string
        want   int64
    }{
        {"5000", 500000},
        {"19.99", 1999},
        {"4.35", 435},
        {"1.15", 115},
        {"8.20", 820},
        {"49.99", 4999},
    }
    for _, tc := range cases {
        srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            if got := r.URL.Query().Get("tx_ref"); got != "ref-2" {
                t.Errorf("unexpected tx_ref %q", got)
            }
            _, _ = w.Write([]byte(`{
                "status": "success",
                "data": {
                    "status": "successful",
                    "amount": ` + tc.amount + `,
                    "currency": "NGN",
                    "meta": {"user_id": "7", "event_id": "3"}
                }
            }`))
        }))

        v := NewFlutterwaveVerifier("sk_test")
        v.baseURL = srv.URL

        vp, err := v.Verify(context.Background(), "ref-2")
        srv.Close()
        if err != nil {
            t.Fatalf("Verify(%s): %v", tc.amount, err)
        }
        if vp.Amount != tc.want {
            t.Fatalf("amount %s: expected %d minor units, got %d", tc.amount, tc.want, vp.Amount)
        }
    }
}

func TestNilVerifiersDroppedFromRegistry(t *testing.T) {
    if NewPaystackVerifier("") != nil {
        t.Fatal("expected nil verifier without a key")
    }
    reg := NewRegistry(map[string]Verifier{MethodPaystack: nil})
    if _, err := reg.Lookup(MethodPaystack); err != ErrUnknownMethod {
        t.Fatalf("expected ErrUnknownMethod, got %v", err)
    }
}
