package handler

import (
    "context"      // context with cancellation for DB calls
    "database/sql" // sentinel errors returned from repositories
    "log"          // best-effort conversion failures are logged only
    "net/http"     // HTTP status codes and primitives
    "strconv"      // string-to-int conversion for JWT subjects
    "strings"      // normalisation helpers
    "time"         // timeouts for DB calls

    "github.com/golang-jwt/jwt/v5" // JWT parsing for logout without middleware
    "github.com/labstack/echo/v4"  // Echo framework for HTTP routing

    "github.com/iliyamo/streampass-platform/internal/config"
    "github.com/iliyamo/streampass-platform/internal/repository"
    "github.com/iliyamo/streampass-platform/internal/service"
    "github.com/iliyamo/streampass-platform/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.  Beyond issuing
// tokens, registration and login are the moments an email becomes a
// verified identity, so both trigger the gift conversion that binds
// pending passes bought for that email to the account.
type AuthHandler struct {
    Cfg       config.Config
    Users     *repository.UserRepo
    Tokens    *repository.TokenRepo
    Converter *service.GiftConverter
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, conv *service.GiftConverter) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Converter: conv}
}

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email"`
    FullName string `json:"full_name"`
    Password string `json:"password"`
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID    uint64 `json:"id"`
    Email string `json:"email"`
    Role  string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// Register: create user, convert any gift passes addressed to the new
// email, and return tokens immediately.  User creation and conversion
// run in one transaction so a failed conversion never leaves a
// half-registered account.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }
    // New signups are always viewers; admins are provisioned out of band.
    role := "VIEWER"

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    tx, err := h.Users.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    uid, err := h.Users.CreateTx(ctx, tx, req.Email, strings.TrimSpace(req.FullName), req.Password, role, h.Cfg.BcryptCost)
    if err != nil {
        if err == repository.ErrEmailExists {
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    conv, err := h.Converter.ConvertTx(ctx, tx, req.Email, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "gift conversion failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
    }
    if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "user":             userPart{ID: uid, Email: req.Email, Role: role},
        "access":           tokenPart{Token: access.Token, Expires: access.Exp},
        "refresh":          tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
        "gifts_converted":  conv.GiftsConverted,
        "passes_converted": conv.PassesConverted,
    })
}

// Login: verify credentials and return a new token pair.  A successful
// login re-verifies the email, so pending gift passes are converted
// best effort; a conversion failure is logged, not surfaced.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }

    if _, err := h.Converter.Convert(ctx, u.Email, u.ID); err != nil {
        log.Printf("auth: gift conversion on login failed for %s: %v", u.Email, err)
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }

    return c.JSON(http.StatusOK, authResp{
        User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    })
}

// Refresh: validate by hash, revoke old, issue new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    raw := strings.TrimSpace(req.RefreshToken)
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
    }
    if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(newRef.Raw), newRef.Exp); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
    }

    return c.JSON(http.StatusOK, authResp{
        User:    userPart{ID: userID, Email: u.Email, Role: u.Role},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
    })
}

// RefreshAccess: validate a refresh token and return a new access token
// without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    raw := strings.TrimSpace(req.RefreshToken)
    hash := utils.HashRefreshRaw(raw)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes refresh tokens.  Two modes: a refresh token in the
// body revokes that single session; a bare Authorization header with
// no body revokes every session of that user.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    hasBearer := false
    authHeader := c.Request().Header.Get("Authorization")
    if strings.HasPrefix(authHeader, "Bearer ") {
        rawToken := strings.TrimPrefix(authHeader, "Bearer ")
        tok, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
            if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, echo.ErrUnauthorized
            }
            return []byte(h.Cfg.JWTSecret), nil
        })
        if err == nil && tok.Valid {
            if claims, ok := tok.Claims.(jwt.MapClaims); ok {
                switch subVal := claims["sub"].(type) {
                case float64:
                    uid = uint64(subVal)
                    hasBearer = true
                case string:
                    if parsed, err := strconv.ParseUint(subVal, 10, 64); err == nil {
                        uid = parsed
                        hasBearer = true
                    }
                }
            }
        }
    }

    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if hasBearer && refreshToken == "" {
        if uid == 0 {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
        }
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    if refreshToken != "" {
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "user_id": c.Get("user_id"),
        "role":    c.Get("role"),
    })
}
