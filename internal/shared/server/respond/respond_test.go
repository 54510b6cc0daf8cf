package respond

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/shared/telemetry"
)

func serve(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
	return resp
}

func TestAttachment(t *testing.T) {
	resp := serve(t, func(c *gin.Context) {
		Attachment(c, "receipts-summary.xlsx", "application/octet-stream", []byte("PK"))
	})
	if resp.Code != http.StatusOK || resp.Body.String() != "PK" {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Disposition"); got != `attachment; filename="receipts-summary.xlsx"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("exports must not be cached")
	}
}

func TestNoContent(t *testing.T) {
	resp := serve(t, NoContent)
	if resp.Code != http.StatusNoContent || resp.Body.Len() != 0 {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
}

func TestErrorEnvelope(t *testing.T) {
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.Configure(telemetry.Options{})

	resp := serve(t, func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not_computed", "no aggregate has been computed yet", nil)
	})
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != http.StatusNotFound || body.Error.Code != "not_computed" {
		t.Fatalf("unexpected error response %d %+v", resp.Code, body)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"warn"`)) {
		t.Fatalf("4xx should log at warn, got %s", buf.String())
	}
}
