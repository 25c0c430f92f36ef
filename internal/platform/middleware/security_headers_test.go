package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func securityHeadersResponse(t *testing.T, cfg SecurityHeadersConfig, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/available-times", nil)
	rec := httptest.NewRecorder()
	err := SecurityHeaders(cfg)(handler)(e.NewContext(req, rec))
	return rec, err
}

func TestSecurityHeaders_SetsAllHeaders(t *testing.T) {
	rec, err := securityHeadersResponse(t, SecurityHeadersConfig{}, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}

	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("header %s: got %q, want %q", header, got, want)
		}
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS without a max age, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	rec, err := securityHeadersResponse(t, SecurityHeadersConfig{HSTSMaxAge: 365 * 24 * time.Hour}, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}

func TestSecurityHeaders_PresentOnErrors(t *testing.T) {
	rec, err := securityHeadersResponse(t, SecurityHeadersConfig{}, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "slot taken")
	})
	if err == nil {
		t.Fatal("expected the handler error to pass through")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected Cache-Control on an error response, got %q", got)
	}
}

func TestSecurityHeaders_ConfigsDoNotShareHeaders(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	if _, err := securityHeadersResponse(t, SecurityHeadersConfig{HSTSMaxAge: time.Hour}, ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := securityHeadersResponse(t, SecurityHeadersConfig{}, ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected HSTS to stay off for the second config, got %q", got)
	}
}
