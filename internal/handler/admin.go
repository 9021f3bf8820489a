package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/repository"
    "github.com/iliyamo/streampass-platform/internal/service"
)

// AdminHandler covers event lifecycle management and the operational
// session endpoints.  All routes behind it require the ADMIN role.
type AdminHandler struct {
    Events *repository.EventRepo
    Reaper *service.SessionReaper
}

func NewAdminHandler(events *repository.EventRepo, reaper *service.SessionReaper) *AdminHandler {
    return &AdminHandler{Events: events, Reaper: reaper}
}

type createPriceReq struct {
    Currency string `json:"currency"`
    Amount   int64  `json:"amount"` // minor units
}

type createEventReq struct {
    Title       string           `json:"title"`
    Description string           `json:"description"`
    StartsAt    time.Time        `json:"starts_at"`
    Prices      []createPriceReq `json:"prices"`
}

// CreateEvent inserts a new event and its per-currency prices as one
// transaction.  Amounts arrive in minor units; a zero or negative
// amount is rejected rather than silently creating a free event.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
    var req createEventReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Title = strings.TrimSpace(req.Title)
    if req.Title == "" || req.StartsAt.IsZero() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and starts_at required"})
    }
    if len(req.Prices) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one price required"})
    }
    prices := make([]model.EventPrice, 0, len(req.Prices))
    seen := map[string]bool{}
    for _, p := range req.Prices {
        cur := strings.ToUpper(strings.TrimSpace(p.Currency))
        if len(cur) != 3 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency must be a 3-letter code"})
        }
        if p.Amount <= 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive minor units"})
        }
        if seen[cur] {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "duplicate currency: " + cur})
        }
        seen[cur] = true
        prices = append(prices, model.EventPrice{Currency: cur, Amount: p.Amount})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    tx, err := h.Events.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ev := &model.Event{Title: req.Title, Description: req.Description, StartsAt: req.StartsAt.UTC()}
    if err := h.Events.CreateTx(ctx, tx, ev, prices); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create event failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    pv := make([]echo.Map, 0, len(prices))
    for i := range prices {
        pv = append(pv, priceView(&prices[i]))
    }
    return c.JSON(http.StatusCreated, echo.Map{"event": eventView(ev), "prices": pv})
}

// ListEvents returns the visible event catalogue for the admin console.
func (h *AdminHandler) ListEvents(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    events, err := h.Events.ListVisible(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    out := make([]echo.Map, 0, len(events))
    for i := range events {
        out = append(out, eventView(&events[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// DeleteEvent soft-deletes an event.  Already-issued passes survive;
// only new purchases and playback on this event are blocked.
func (h *AdminHandler) DeleteEvent(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Events.SoftDelete(ctx, id); err != nil {
        if err == repository.ErrEventNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
    }
    return c.NoContent(http.StatusNoContent)
}

type cleanupReq struct {
    ThresholdMinutes int `json:"threshold_minutes"`
}

// CleanupSessions runs one reaper sweep on demand and reports how many
// sessions were released.  An optional threshold_minutes overrides the
// configured stale window for this sweep only.
func (h *AdminHandler) CleanupSessions(c echo.Context) error {
    var req cleanupReq
    _ = c.Bind(&req) // empty body is fine
    if req.ThresholdMinutes < 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "threshold_minutes must not be negative"})
    }
    threshold := time.Duration(req.ThresholdMinutes) * time.Minute

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()

    released, err := h.Reaper.CleanupStaleSessions(ctx, threshold) // 0 -> configured window
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// SessionStats reports the live session distribution: active, recently
// active, and stale-but-unreclaimed.
func (h *AdminHandler) SessionStats(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    stats, err := h.Reaper.Stats(ctx)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats failed"})
    }
    return c.JSON(http.StatusOK, stats)
}
