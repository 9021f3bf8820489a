// Package queue defines message payloads exchanged over the message broker.
package queue

// Notification kinds published after a redemption commits.
const (
    KindPurchaseReceipt = "PURCHASE_RECEIPT" // receipt to the buyer
    KindGiftReceived    = "GIFT_RECEIVED"    // invite to a gift recipient
)

// NotificationEvent is published once per email owed after a successful
// redemption: one receipt to the buyer plus one message per gift
// recipient. It carries enough information for the delivery consumer to
// render the email without querying the primary database. Dispatch is
// strictly post-commit and best effort; a lost message never rolls back
// the passes it describes.
type NotificationEvent struct {
    MessageID    string `json:"message_id"`
    Kind         string `json:"kind"`
    ToEmail      string `json:"to_email"`
    ToName       string `json:"to_name,omitempty"`
    BuyerName    string `json:"buyer_name"`
    EventID      uint64 `json:"event_id"`
    EventTitle   string `json:"event_title"`
    PassPublicID string `json:"pass_public_id"`
    Amount       int64  `json:"amount"`
    Currency     string `json:"currency"`
    IssuedAt     string `json:"issued_at"`
}
