package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/repository"
    "github.com/iliyamo/streampass-platform/internal/service"
)

// StreampassHandler serves the viewer-facing endpoints: pass redemption,
// pass listing, and the playback session lifecycle.
type StreampassHandler struct {
    Issuer *service.GrantIssuer
    Guard  *service.SessionGuard
    Passes *repository.StreamPassRepo
    Gifts  *repository.GiftRepo
    Txns   *repository.TransactionRepo
}

func NewStreampassHandler(issuer *service.GrantIssuer, guard *service.SessionGuard,
    passes *repository.StreamPassRepo, gifts *repository.GiftRepo, txns *repository.TransactionRepo) *StreampassHandler {
    return &StreampassHandler{Issuer: issuer, Guard: guard, Passes: passes, Gifts: gifts, Txns: txns}
}

// passView projects a pass for API responses.  Internal row IDs and
// the live session token never leave the server this way; the token is
// only handed out by BeginSession.
func passView(p *model.Streampass) echo.Map {
    v := echo.Map{
        "public_id":     p.PublicID,
        "event_id":      p.EventID,
        "origin":        p.Origin,
        "has_converted": p.HasConverted,
        "in_session":    p.InSession,
        "created_at":    p.CreatedAt,
    }
    if p.RecipientEmail != nil {
        v["recipient_email"] = *p.RecipientEmail
    }
    if p.LastActiveAt != nil {
        v["last_active_at"] = *p.LastActiveAt
    }
    return v
}

func giftView(g *model.GiftRecord) echo.Map {
    return echo.Map{
        "pass_public_id":  g.PassPublicID,
        "event_id":        g.EventID,
        "recipient_email": g.RecipientEmail,
        "recipient_name":  g.RecipientName,
        "has_converted":   g.HasConverted,
        "created_at":      g.CreatedAt,
    }
}

func transactionView(t *model.Transaction) echo.Map {
    return echo.Map{
        "event_id":          t.EventID,
        "payment_method":    t.PaymentMethod,
        "payment_reference": t.PaymentReference,
        "amount":            t.Amount,
        "currency":          t.Currency,
        "is_gift":           t.IsGift,
        "status":            t.Status,
        "created_at":        t.CreatedAt,
    }
}

type redeemReq struct {
    PaymentMethod    string `json:"payment_method"`
    PaymentReference string `json:"payment_reference"`
}

type sessionTokenReq struct {
    SessionToken string `json:"session_token"`
}

// Redeem verifies a provider payment reference and issues the pass (or
// passes, for a gift purchase).  Retries with the same reference return
// the pass already issued, so a client that times out can safely call
// again.
func (h *StreampassHandler) Redeem(c echo.Context) error {
    var req redeemReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
    req.PaymentReference = strings.TrimSpace(req.PaymentReference)
    if req.PaymentMethod == "" || req.PaymentReference == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_method and payment_reference required"})
    }

    // Verification calls out to the provider, so allow more than the
    // usual DB timeout.
    ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
    defer cancel()

    pass, err := h.Issuer.Redeem(ctx, req.PaymentMethod, req.PaymentReference)
    if err != nil {
        switch err {
        case service.ErrPaymentInvalid:
            return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment verification failed"})
        case service.ErrAmountMismatch:
            return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "paid amount does not match event price"})
        case repository.ErrEventNotFound:
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        case service.ErrHolderNotFound:
            return c.JSON(http.StatusNotFound, echo.Map{"error": "buyer account not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "redeem failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"streampass": passView(pass)})
}

// ListMine returns all passes bound to the authenticated user.
func (h *StreampassHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    passes, err := h.Passes.ListByHolder(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(passes))
    for i := range passes {
        out = append(out, passView(&passes[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"streampasses": out})
}

// ListGifts returns the gift records the authenticated user purchased,
// including whether each recipient has claimed theirs yet.
func (h *StreampassHandler) ListGifts(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    gifts, err := h.Gifts.ListByBuyer(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(gifts))
    for i := range gifts {
        out = append(out, giftView(&gifts[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"gifts": out})
}

// ListTransactions returns the authenticated user's payment audit rows,
// newest first.
func (h *StreampassHandler) ListTransactions(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    txns, err := h.Txns.ListByUser(ctx, uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(txns))
    for i := range txns {
        out = append(out, transactionView(&txns[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

// BeginSession opens a playback session on a pass.  One recently active
// session per holder per event; a second device gets a 409 until the
// first goes quiet for the active window.
func (h *StreampassHandler) BeginSession(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    publicID := strings.TrimSpace(c.Param("public_id"))
    if publicID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "pass id required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    token, err := h.Guard.BeginSession(ctx, publicID, uid)
    if err != nil {
        return h.sessionError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"session_token": token})
}

// Heartbeat keeps a playback session alive.  Players call this on an
// interval well inside the active window.
func (h *StreampassHandler) Heartbeat(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    publicID := strings.TrimSpace(c.Param("public_id"))
    var req sessionTokenReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_token required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Guard.Heartbeat(ctx, publicID, uid, strings.TrimSpace(req.SessionToken)); err != nil {
        return h.sessionError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "alive"})
}

// EndSession closes a playback session explicitly.
func (h *StreampassHandler) EndSession(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    publicID := strings.TrimSpace(c.Param("public_id"))
    var req sessionTokenReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_token required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Guard.EndSession(ctx, publicID, uid, strings.TrimSpace(req.SessionToken)); err != nil {
        return h.sessionError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// sessionError maps session-layer errors onto HTTP codes.
func (h *StreampassHandler) sessionError(c echo.Context, err error) error {
    switch err {
    case repository.ErrStreampassNotFound:
        return c.JSON(http.StatusNotFound, echo.Map{"error": "streampass not found"})
    case repository.ErrForbidden:
        return c.JSON(http.StatusForbidden, echo.Map{"error": "not your streampass"})
    case service.ErrSessionConflict:
        return c.JSON(http.StatusConflict, echo.Map{"error": "another session is already active for this event"})
    case service.ErrInvalidSessionToken:
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired session token"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session operation failed"})
}
