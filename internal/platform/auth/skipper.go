package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Route identifies an endpoint by method and registered path.
type Route struct {
	Method string
	Path   string
}

// PublicRoutes are served without a bearer token: the liveness and readiness
// checks polled by load balancers.
var PublicRoutes = []Route{
	{Method: http.MethodGet, Path: "/health"},
	{Method: http.MethodGet, Path: "/health/db"},
}

// NewSkipper returns an echo skipper that lets the given routes through
// without authentication. It matches the registered route, so a request that
// reaches the same path with another method still needs a token.
func NewSkipper(routes ...Route) func(echo.Context) bool {
	public := make(map[Route]struct{}, len(routes))
	for _, r := range routes {
		public[r] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := public[Route{Method: c.Request().Method, Path: c.Path()}]
		return ok
	}
}

// AuthSkipper skips authentication for PublicRoutes.
var AuthSkipper = NewSkipper(PublicRoutes...)
