package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"impact-backend/internal/analysis"
	"impact-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.create)
	rg.GET("/analyses", h.list)
	rg.GET("/analyses/:id", h.get)
	rg.GET("/analyses/:id/report", h.report)
	rg.POST("/analyses/:id/register", h.retryRegistration)
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	a, err := h.Svc.Create(ctx, CreateInput{
		PRDContent:          req.PRDContent,
		PRDDocumentID:       req.PRDDocumentID,
		ArchitectureContent: req.ArchitectureContent,
		ArchDocumentID:      req.ArchDocumentID,
		RepositoryURL:       req.RepositoryURL,
	})
	if err != nil {
		var vErr *analysis.ValidationError
		switch {
		case errors.As(err, &vErr):
			respond.Error(c, http.StatusBadRequest, "validation_error", vErr.Error(), []map[string]string{
				{"field": vErr.Field, "issue": vErr.Reason},
			})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.Accepted(c, gin.H{
		"analysisId": a.ID,
		"status":     a.Status,
	})
}

func (h *Handler) get(c *gin.Context) {
	a, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(a))
}

func (h *Handler) report(c *gin.Context) {
	report, err := h.Svc.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrReportNotReady):
			respond.Error(c, http.StatusConflict, "report_not_ready", "analysis has not completed", nil)
		case errors.Is(err, analysis.ErrReportNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "report not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch report", nil)
		}
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", report)
}

func (h *Handler) retryRegistration(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	a, err := h.Svc.RetryRegistration(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotRetryable):
			respond.Error(c, http.StatusConflict, "not_retryable", "analysis is not awaiting registration retry", nil)
		case analysis.IsRegistrationError(err):
			respond.Error(c, http.StatusBadGateway, "registration_failed", "report registration failed; retry later", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry registration", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(a))
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	items, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]AnalysisResponse, 0, len(items))
	for _, a := range items {
		resp = append(resp, toResponse(a))
	}

	respond.JSON(c, http.StatusOK, resp)
}
