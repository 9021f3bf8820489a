package model

import "time"

// GiftRecord is bookkeeping for a gifted streampass, kept separately so
// receipts and reconciliation survive independently of the pass itself.
// One record is created per gift recipient, in the same transaction as
// the pass, and shares the recipient's conversion state.
//
// Fields:
//  ID            – primary key identifier.
//  PassPublicID  – public UUID of the gifted pass this record tracks.
//  EventID       – event the gift grants access to.
//  BuyerUserID   – user who paid for the gift.
//  RecipientEmail – email the gift was addressed to.
//  RecipientName – display name supplied by the buyer.
//  RecipientUserID – registered recipient once converted (nullable).
//  HasConverted  – true once the recipient is a registered user.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type GiftRecord struct {
    ID              uint64    // gift_records.id
    PassPublicID    string    // gift_records.pass_public_id
    EventID         uint64    // gift_records.event_id
    BuyerUserID     uint64    // gift_records.buyer_user_id
    RecipientEmail  string    // gift_records.recipient_email
    RecipientName   string    // gift_records.recipient_name
    RecipientUserID *uint64   // gift_records.recipient_user_id (nullable)
    HasConverted    bool      // gift_records.has_converted
    CreatedAt       time.Time // gift_records.created_at
    UpdatedAt       time.Time // gift_records.updated_at
}
