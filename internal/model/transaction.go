package model

import "time"

// Transaction statuses.  A row is written once per redemption attempt
// and never updated afterwards.
const (
    TxStatusSuccessful = "SUCCESSFUL"
    TxStatusFailed     = "FAILED"
)

// Transaction is an append-only audit entry for a redemption attempt.
// Successful rows are written inside the same transaction as the passes
// they paid for; failed rows are written best effort outside any
// transaction so the audit survives the abort.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – buyer who attempted the redemption.
//  EventID          – event the payment was for.
//  PaymentMethod    – provider tag (e.g. paystack, flutterwave).
//  PaymentReference – provider reference for the payment.
//  Amount           – verified amount in currency minor units.
//  Currency         – ISO currency code.
//  IsGift           – whether the payment covered gift recipients.
//  Status           – SUCCESSFUL or FAILED.
//  CreatedAt        – creation timestamp.
type Transaction struct {
    ID               uint64    // transactions.id
    UserID           uint64    // transactions.user_id
    EventID          uint64    // transactions.event_id
    PaymentMethod    string    // transactions.payment_method
    PaymentReference string    // transactions.payment_reference
    Amount           int64     // transactions.amount
    Currency         string    // transactions.currency
    IsGift           bool      // transactions.is_gift
    Status           string    // transactions.status
    CreatedAt        time.Time // transactions.created_at
}
