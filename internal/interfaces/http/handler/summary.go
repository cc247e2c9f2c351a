package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/interfaces/http/dto"
	"github.com/rentalops/backend/internal/interfaces/http/middleware"
)

// SummaryHandler serves collection summaries
type SummaryHandler struct {
	BaseHandler
	summaryService *reportapp.SummaryService
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(summaryService *reportapp.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService}
}

// Get handles GET /billing/summary. The project comes from project_id, then the scope header;
// with neither, every project is summarized.
func (h *SummaryHandler) Get(c *gin.Context) {
	var query dto.SummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	q := reportapp.SummaryQuery{
		StartPeriod: query.StartPeriod,
		EndPeriod:   query.EndPeriod,
	}
	if query.ProjectID != "" {
		id := uuid.MustParse(query.ProjectID)
		q.ProjectID = &id
	} else if id, ok := middleware.GetProjectID(c); ok {
		q.ProjectID = &id
	}

	summary, err := h.summaryService.GetSummary(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}
