package echo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junioryono/modkit"
	"github.com/junioryono/modkit/internal/testutil"
)

func mountApp(t *testing.T, opts ...Option) *echo.Echo {
	t.Helper()
	app, err := testutil.NewApp().Compile(context.Background())
	require.NoError(t, err)

	e, err := Mount(context.Background(), app, opts...)
	require.NoError(t, err)
	return e
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMount(t *testing.T) {
	e := mountApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{"text", http.MethodGet, "/api/health", "", http.StatusOK, "ok"},
		{"path param", http.MethodGet, "/api/users/1", "", http.StatusOK, `{"id":"1","name":"alice"}`},
		{"create", http.MethodPost, "/api/users", `{"name":"bob"}`, http.StatusOK, `{"id":"2","name":"bob"}`},
		{"list", http.MethodGet, "/api/users", "", http.StatusOK, `[{"id":"1","name":"alice"},{"id":"2","name":"bob"}]`},
		{"not found", http.MethodGet, "/api/users/42", "", http.StatusNotFound, `{"message":"user not found"}`},
		{"internal error", http.MethodGet, "/api/health/fail", "", http.StatusInternalServerError, `{"message":"Internal Server Error"}`},
		{"raw", http.MethodGet, "/api/health/raw", "", http.StatusAccepted, "raw"},
		{"delete", http.MethodDelete, "/api/users/1", "", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			if strings.HasPrefix(tt.want, "{") || strings.HasPrefix(tt.want, "[") {
				assert.JSONEq(t, tt.want, rec.Body.String())
			} else {
				assert.Equal(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMountOptions(t *testing.T) {
	t.Run("existing instance", func(t *testing.T) {
		instance := echo.New()
		e := mountApp(t, WithEcho(instance))
		assert.Same(t, instance, e)
	})

	t.Run("error handler", func(t *testing.T) {
		var got error
		e := mountApp(t, WithErrorHandler(func(c echo.Context, err error) error {
			got = err
			return c.String(http.StatusTeapot, "teapot")
		}))

		rec := serve(e, http.MethodGet, "/api/health/fail", "")
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "teapot", rec.Body.String())
		assert.True(t, errors.Is(got, testutil.ErrIntentional))
	})

	t.Run("middleware", func(t *testing.T) {
		var seen error
		e := mountApp(t, WithMiddleware(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				seen = next(c)
				return seen
			}
		}))

		serve(e, http.MethodGet, "/api/users/42", "")

		var he *echo.HTTPError
		require.True(t, errors.As(seen, &he))
		assert.Equal(t, http.StatusNotFound, he.Code)
		assert.Equal(t, "user not found", he.Message)
	})
}

type (
	echoModule     struct{}
	echoController struct{}
)

func (echoController) Path(c *modkit.Context) (string, error) {
	ec, ok := EchoContext(c)
	if !ok {
		return "", errors.New("no echo context")
	}
	return ec.Path(), nil
}

func TestEchoContext(t *testing.T) {
	meta := modkit.NewMetadata()
	mod := modkit.TypeClass[echoModule]()
	ctrl := modkit.TypeClass[echoController]()

	meta.Module(mod, modkit.Route("/v1"), modkit.Controllers(ctrl))
	meta.Controller(ctrl, modkit.Route("/items"))
	meta.Method(ctrl, "Path", modkit.Get("/:id"))

	app, err := modkit.Compile(context.Background(), meta, mod)
	require.NoError(t, err)

	e, err := Mount(context.Background(), app)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/v1/items/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/items/:id", rec.Body.String())

	_, ok := EchoContext(modkit.NewContext(context.Background()))
	assert.False(t, ok)
}

type (
	panicModule     struct{}
	panicController struct{}
)

func (panicController) Boom() string { panic("boom") }

func compilePanic(t *testing.T) *modkit.CompiledModule {
	t.Helper()
	meta := modkit.NewMetadata()
	mod := modkit.TypeClass[panicModule]()
	ctrl := modkit.TypeClass[panicController]()

	meta.Module(mod, modkit.Controllers(ctrl))
	meta.Controller(ctrl)
	meta.Method(ctrl, "Boom", modkit.Get("/boom"))

	app, err := modkit.Compile(context.Background(), meta, mod)
	require.NoError(t, err)
	return app
}

func TestPanic(t *testing.T) {
	app := compilePanic(t)

	t.Run("recovery middleware", func(t *testing.T) {
		e, err := Mount(context.Background(), app, WithMiddleware(middleware.Recover()))
		require.NoError(t, err)

		rec := serve(e, http.MethodGet, "/boom", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("no recovery", func(t *testing.T) {
		e, err := Mount(context.Background(), app)
		require.NoError(t, err)

		assert.PanicsWithValue(t, "boom", func() {
			serve(e, http.MethodGet, "/boom", "")
		})
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Nil(t, cfg.Echo)
	assert.NotNil(t, cfg.ErrorHandler)
	assert.NotNil(t, cfg.Logger)
	assert.Empty(t, cfg.Middlewares)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	cause := modkit.NewHTTPError(http.StatusConflict, "taken")
	err := cfg.ErrorHandler(c, cause)

	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusConflict, he.Code)
	assert.Equal(t, "taken", he.Message)
	assert.Equal(t, cause, he.Internal)
}
