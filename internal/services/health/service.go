package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/shared/server/respond"
	"receipts-backend/internal/shared/telemetry"
)

const defaultCheckTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Report is the readiness payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks"`
}

// Service runs readiness checks against the document store and the cache backend.
type Service struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Service{checks: map[string]Check{}, timeout: timeout}
}

// Add registers a named check.
func (s *Service) Add(name string, check Check) {
	s.checks[name] = check
}

// Status runs every check. A failed check is reported by name with its error text.
func (s *Service) Status(ctx context.Context) Report {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{OK: true, Checks: make(map[string]string, len(names))}
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.checks[name](checkCtx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			telemetry.Warn("health.check_failed", map[string]any{"check": name, "error": err.Error()})
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}

// RegisterRoutes attaches GET /ready.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ready", func(c *gin.Context) {
		report := s.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
}
