package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Limit  int    `query:"limit" default:"50" validate:"min=1,max=1000"`
	Symbol string `json:"symbol" validate:"omitempty,oneof=BTC-USDT-SWAP ETH-USDT-SWAP"`
}

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	var req listRequest
	errs := ReadAndValidateRequest(newContext("/"), &req)
	assert.Nil(t, errs)
	assert.Equal(t, 50, req.Limit)
}

func TestReadAndValidateRequestReportsQueryName(t *testing.T) {
	var req listRequest
	errs := ReadAndValidateRequest(newContext("/?limit=5000"), &req)
	require.IsType(t, []ValidationError{}, errs)

	list := errs.([]ValidationError)
	require.Len(t, list, 1)
	assert.Equal(t, "limit", list[0].Field)
	assert.Equal(t, "ERR_MAX", list[0].Code)
	assert.Equal(t, "1000", list[0].Params["max"])
}

type routeHandler struct{ path string }

func (h routeHandler) RegisterRoutes(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error {
		return CachedResponse(c, 5*time.Second, map[string]string{"path": h.path})
	})
}

func TestHandlersRegistersAll(t *testing.T) {
	e := echo.New()
	Handlers{routeHandler{"/a"}, nil, routeHandler{"/b"}}.RegisterRoutes(e)

	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "private, max-age=5", rec.Header().Get(echo.HeaderCacheControl))
	}
}
