package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Viewers buy and redeem streampasses; admins manage events and
// operational endpoints.  Handlers define their own response types with
// JSON tags, so none are declared here.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  FullName     – display name used on receipts and gift emails.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (VIEWER or ADMIN).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    FullName     string    // users.full_name
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and carries expiry and revocation
// metadata.  The plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
