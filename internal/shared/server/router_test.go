package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/shared/config"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestRouterServesHealthMetricsAndHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterDeps{
		Config:   config.Config{Env: "dev"},
		Handlers: []RouteRegistrar{pingRoutes{}, nil},
	})

	cases := []struct {
		path string
		want string
	}{
		{"/api/v1/health", `"ok":true`},
		{"/api/v1/ping", "pong"},
		{"/metrics", "receipts_documents_processed_total"},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.path, resp.Code)
		}
		if !strings.Contains(resp.Body.String(), tc.want) {
			t.Fatalf("%s: body %q missing %q", tc.path, resp.Body.String(), tc.want)
		}
		if resp.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s: missing X-Request-Id", tc.path)
		}
	}
}

func TestAddr(t *testing.T) {
	for in, want := range map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"} {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
