package http

import (
	"github.com/labstack/echo/v4"

	xutil "LabPulse/pkg/util"
)

// HeaderUserID carries the caller's user id, set by the upstream gateway.
const HeaderUserID = "X-User-ID"

// UserID reads the caller's id from the X-User-ID header, falling back to the
// user_id query parameter for websocket clients that cannot set headers.
func UserID(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get(HeaderUserID)
	if raw == "" {
		raw = c.QueryParam("user_id")
	}
	if raw == "" {
		return 0, UnauthorizedError("missing " + HeaderUserID + " header")
	}
	id, ok := xutil.ParseInt64(raw)
	if !ok {
		return 0, BadRequestErrorf("invalid user id %q", raw)
	}
	return id, nil
}
