package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/streampass-platform/internal/utils"
)

// User mirrors the 'users' table.
type User struct {
    ID           uint64
    Email        string
    FullName     string
    PasswordHash string
    Role         string
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// DB exposes the underlying sql.DB.  Registration runs user creation
// and pending-gift conversion inside one transaction, which the handler
// opens through this handle.
func (r *UserRepo) DB() *sql.DB { return r.db }

var ErrEmailExists = errors.New("email already exists")

const userCols = "id,email,full_name,password_hash,role,is_active,created_at,updated_at"

// CreateTx inserts a user within the provided transaction and returns
// its ID.  It participates in the caller's transaction so that the
// gift conversion triggered by a new verified email commits or aborts
// together with the account itself.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, email, fullName, password, role string, cost int) (uint64, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    res, err := tx.ExecContext(ctx,
        "INSERT INTO users (email, full_name, password_hash, role) VALUES (?,?,?,?)",
        email, fullName, hash, role)
    if err != nil {
        // 1062 is the MySQL duplicate-key error for the unique email index.
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    var u User
    err := r.db.QueryRowContext(ctx,
        "SELECT "+userCols+" FROM users WHERE email=? LIMIT 1",
        email).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
    var u User
    err := r.db.QueryRowContext(ctx,
        "SELECT "+userCols+" FROM users WHERE id=? LIMIT 1",
        id).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    return u, err
}

// FindIDByEmail returns the user ID owning the given email, or 0 with
// no error when the email has no account yet.  The grant issuer calls
// this during gift fan-out to decide whether a recipient's pass can be
// pre-converted.
func (r *UserRepo) FindIDByEmail(ctx context.Context, email string) (uint64, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    var id uint64
    err := r.db.QueryRowContext(ctx,
        "SELECT id FROM users WHERE email=? LIMIT 1", email).Scan(&id)
    if err == sql.ErrNoRows {
        return 0, nil
    }
    if err != nil {
        return 0, err
    }
    return id, nil
}
