package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.Configure(telemetry.Options{})

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.POST("/api/v1/receipts/aggregate/recompute", func(c *gin.Context) {
		c.Set(RunIDKey, "run-1")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts/aggregate/recompute", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("User-Agent", "test-agent")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json %q: %v", last, err)
	}

	required := []string{"request_id", "method", "path", "status", "duration_ms", "client_ip", "user_agent"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["msg"] != "request.complete" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", payload["request_id"])
	}
	if payload["run_id"] != "run-1" {
		t.Fatalf("unexpected run_id: %v", payload["run_id"])
	}
	if payload["status"] != 200.0 {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if resp.Header().Get("X-Request-Id") != "req-1" {
		t.Fatalf("request id not echoed")
	}
}

func TestLoggingSkipsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.Configure(telemetry.Options{})

	router := gin.New()
	router.Use(Logging(), CORS(nil))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/receipts/extract", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "request.complete") {
		t.Fatalf("expected no request log for OPTIONS, got %s", buf.String())
	}
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.Configure(telemetry.Options{})

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.POST("/boom", func(c *gin.Context) {
		c.Set(RunIDKey, "run-9")
		panic("boom")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/boom", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"code":"internal_error"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	var panicLog map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil && entry["msg"] == "panic" {
			panicLog = entry
		}
	}
	if panicLog == nil {
		t.Fatalf("expected panic log, got %s", buf.String())
	}
	if panicLog["run_id"] != "run-9" || panicLog["route"] != "/boom" || panicLog["request_id"] == "" {
		t.Fatalf("unexpected panic log %v", panicLog)
	}
}

func TestRecoveryAfterPartialWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	telemetry.SetOutput(&bytes.Buffer{})
	defer telemetry.Configure(telemetry.Options{})

	router := gin.New()
	router.Use(Recovery())
	router.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/half", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "partial" {
		t.Fatalf("expected the written response to stand, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	for _, header := range []string{"", "has space", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		got := resp.Header().Get(RequestIDHeader)
		if got == "" || got == header || resp.Body.String() != got {
			t.Fatalf("header %q: got id %q body %q", header, got, resp.Body.String())
		}
	}
}
