package handler

import (
    "context"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/streampass-platform/internal/model"
    "github.com/iliyamo/streampass-platform/internal/repository"
)

func eventView(e *model.Event) echo.Map {
    return echo.Map{
        "id":          e.ID,
        "title":       e.Title,
        "description": e.Description,
        "starts_at":   e.StartsAt,
    }
}

func priceView(p *model.EventPrice) echo.Map {
    return echo.Map{
        "currency": p.Currency,
        "amount":   p.Amount, // minor units
    }
}

// PublicEventHandler serves the unauthenticated event catalogue.  The
// routes sit behind the response cache middleware since the listing is
// read-heavy during a sale rush and changes rarely.
type PublicEventHandler struct {
    Events *repository.EventRepo
}

func NewPublicEventHandler(events *repository.EventRepo) *PublicEventHandler {
    return &PublicEventHandler{Events: events}
}

// List returns every purchasable event ordered by start time.
func (h *PublicEventHandler) List(c echo.Context) error {
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

// Get returns one event with its per-currency prices.  Soft-deleted
// events are hidden here even though admin views can still see them.
func (h *PublicEventHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    ev, err := h.Events.GetByID(ctx, id)
    if err != nil {
        if err == repository.ErrEventNotFound {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if ev.IsDeleted {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
    }
    prices, err := h.Events.PricesByEvent(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    pv := make([]echo.Map, 0, len(prices))
    for i := range prices {
        pv = append(pv, priceView(&prices[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"event": eventView(ev), "prices": pv})
}
