package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	applogger "TrendPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(mw...)
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	return e
}

func do(e *echo.Echo, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRecoverReturns500(t *testing.T) {
	e := newEcho(Recover(applogger.Nop()))
	rec := do(e, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	e := newEcho(RateLimit(0.001, 2))
	assert.Equal(t, http.StatusOK, do(e, "/ok", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, "/ok", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, "/ok", nil).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	e := newEcho(RateLimit(0, 0))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, "/ok", nil).Code)
	}
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	e := newEcho(CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{http.MethodGet}}))
	rec := do(e, "/ok", map[string]string{echo.HeaderOrigin: "http://dash.local"})
	assert.Equal(t, "http://dash.local", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, http.MethodGet, rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}
