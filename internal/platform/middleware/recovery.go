package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/scheduler/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs it with the stack and
// the caller's identity. http.ErrAbortHandler is re-raised so net/http can
// drop the connection. A panic after the response was committed is logged
// only.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				committed := c.Response().Committed

				evt := logger.Error()
				if perr, ok := r.(error); ok {
					evt = evt.Err(perr)
				}
				evt.
					Str("request_id", rid).
					Str("method", req.Method).
					Str("route", c.Path()).
					Str("user_id", auth.UserIDFromContext(req.Context())).
					Str("panic", fmt.Sprint(r)).
					Bool("committed", committed).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if !committed {
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
