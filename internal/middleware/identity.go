package middleware

import (
    "fmt"

    "github.com/labstack/echo/v4"
)

// currentUserID resolves the caller's identity for rate-limit key
// building.  JWTAuth stores the raw "sub" claim, which jwt/v5 decodes
// as float64 for numeric subjects, so both forms are handled.  Requests
// on public routes have no identity and share the "anon" bucket, which
// is why the default key strategy also folds in the client IP.
func currentUserID(c echo.Context) string {
    switch v := c.Get("user_id").(type) {
    case string:
        if v != "" {
            return v
        }
    case float64:
        return fmt.Sprintf("%.0f", v)
    case uint64:
        return fmt.Sprintf("%d", v)
    }
    return "anon"
}
