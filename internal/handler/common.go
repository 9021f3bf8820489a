package handler // handler defines http handlers

import (
    "errors"  // errors provides the sentinel used in getUserID
    "strconv" // strconv converts strings to numeric types

    "github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id from echo.Context and converts it to
// uint64.  The JWT middleware stores claims without normalising their
// numeric type, so all plausible representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}
