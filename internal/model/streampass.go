package model

import "time"

// Streampass origins.  A pass is either bought by its holder or gifted
// to someone else by the buyer.
const (
    OriginSelf = "SELF" // purchased by the holder
    OriginGift = "GIFT" // purchased by someone else as a gift
)

// Holder identifies who owns a streampass.  Exactly one of the two
// variants is set at any time: a registered user ID, or a bare email
// address for a gift recipient who has not signed up yet.  Conversion
// from the email variant to the registered variant happens exactly once,
// when the recipient verifies an account with that email.
type Holder struct {
    UserID uint64 // non-zero for registered holders
    Email  string // non-empty for unregistered gift recipients
}

// RegisteredHolder builds a Holder for an existing user.
func RegisteredHolder(userID uint64) Holder { return Holder{UserID: userID} }

// UnregisteredHolder builds a Holder addressed only by email.
func UnregisteredHolder(email string) Holder { return Holder{Email: email} }

// Registered reports whether the holder is bound to a user account.
func (h Holder) Registered() bool { return h.UserID != 0 }

// Streampass grants one recipient the right to watch one event.  It is
// created only by a successful redemption, never pre-created, and never
// deleted.  The session fields track the single playback session allowed
// per pass; SessionToken is non-null exactly when InSession is true.
//
// Fields:
//  ID               – primary key identifier.
//  PublicID         – opaque UUID exposed to clients.
//  EventID          – event this pass grants access to.
//  HolderUserID     – registered holder (null for unconverted gifts).
//  RecipientEmail   – gift recipient email (null for self purchases).
//  Origin           – SELF or GIFT.
//  PaymentMethod    – provider tag used for the purchase (e.g. paystack).
//  PaymentReference – provider reference; part of the idempotency key.
//  HasConverted     – true once an email-addressed gift is bound to a user.
//  InSession        – true while a playback session is open.
//  SessionToken     – opaque token for the open session (nullable).
//  LastActiveAt     – last heartbeat time for the open session (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Streampass struct {
    ID               uint64     // streampasses.id
    PublicID         string     // streampasses.public_id
    EventID          uint64     // streampasses.event_id
    HolderUserID     *uint64    // streampasses.holder_user_id (nullable)
    RecipientEmail   *string    // streampasses.recipient_email (nullable)
    Origin           string     // streampasses.origin
    PaymentMethod    string     // streampasses.payment_method
    PaymentReference string     // streampasses.payment_reference
    HasConverted     bool       // streampasses.has_converted
    InSession        bool       // streampasses.in_session
    SessionToken     *string    // streampasses.session_token (nullable)
    LastActiveAt     *time.Time // streampasses.last_active_at (nullable)
    CreatedAt        time.Time  // streampasses.created_at
    UpdatedAt        time.Time  // streampasses.updated_at
}

// Holder resolves the pass owner as a tagged value.  A converted or
// self-purchased pass resolves to the registered variant.
func (s *Streampass) Holder() Holder {
    if s.HolderUserID != nil && *s.HolderUserID != 0 {
        return RegisteredHolder(*s.HolderUserID)
    }
    if s.RecipientEmail != nil {
        return UnregisteredHolder(*s.RecipientEmail)
    }
    return Holder{}
}
