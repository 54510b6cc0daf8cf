package receipts

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"receipts-backend/internal/receiptcache"
	"receipts-backend/internal/shared/server/middleware"
	"receipts-backend/internal/shared/server/respond"
)

const (
	maxUploadSize = 20 << 20 // 20MB
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches receipt routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/receipts")
	g.GET("/documents", h.documents)
	g.POST("/extract", h.extract)
	g.GET("/aggregate", h.aggregate)
	g.POST("/aggregate/recompute", h.recompute)
	g.DELETE("/aggregate", h.clear)
	g.GET("/aggregate/export.xlsx", h.export)
}

func (h *Handler) documents(c *gin.Context) {
	docs, err := h.Svc.Documents(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	respond.OK(c, gin.H{"documents": docs, "count": len(docs)})
}

type extractRequest struct {
	Text *string `json:"text"`
}

func (h *Handler) extract(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}

		rec, pages, err := h.Svc.ExtractPDF(ctx, data)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to extract invoice", nil)
			return
		}
		respond.OK(c, gin.H{"fileName": fileHeader.Filename, "pageCount": pages, "record": rec})
		return
	}

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text or file is required", nil)
		return
	}
	respond.OK(c, gin.H{"record": h.Svc.ExtractInvoice(ctx, *req.Text)})
}

func (h *Handler) aggregate(c *gin.Context) {
	var (
		v   View
		err error
	)
	switch c.Query("refresh") {
	case "":
		v, err = h.Svc.Status(c.Request.Context())
	case "stale":
		v, err = h.Svc.GetAggregate(c.Request.Context())
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "refresh must be \"stale\"", nil)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if v.RunID != "" {
		c.Set(middleware.RunIDKey, v.RunID)
	}
	respond.OK(c, v)
}

func (h *Handler) recompute(c *gin.Context) {
	v, err := h.Svc.Recompute(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.RunIDKey, v.RunID)
	respond.OK(c, v)
}

func (h *Handler) clear(c *gin.Context) {
	if err := h.Svc.Clear(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) export(c *gin.Context) {
	data, err := h.Svc.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.Attachment(c, "receipts-summary.xlsx", xlsxMIME, data)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotComputed):
		respond.Error(c, http.StatusNotFound, "not_computed", "no aggregate has been computed yet", nil)
	case errors.Is(err, receiptcache.ErrNotDurable):
		respond.Error(c, http.StatusServiceUnavailable, "cache_not_durable", err.Error(), nil)
	case errors.Is(err, receiptcache.ErrClosed):
		respond.Error(c, http.StatusServiceUnavailable, "cache_closed", "cache is shutting down", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process receipts", nil)
	}
}
