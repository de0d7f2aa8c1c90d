package reviews

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"invoice-console/internal/backend"
	"invoice-console/internal/shared/server/respond"
	"invoice-console/internal/workflows"
)

// Handler exposes the review queue over HTTP.
type Handler struct {
	Queue *Queue
}

// NewHandler constructs a Handler.
func NewHandler(queue *Queue) *Handler {
	return &Handler{Queue: queue}
}

// RegisterRoutes attaches review routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reviews", h.render)
	rg.POST("/reviews/refresh", h.refresh)
	rg.GET("/reviews/history", h.history)
	rg.POST("/reviews/:checkpoint_id/open", h.open)
	rg.PUT("/reviews/form", h.updateForm)
	rg.POST("/reviews/submit", h.submit)
	rg.POST("/reviews/cancel", h.cancel)
	rg.DELETE("/reviews/notice", h.dismiss)
}

func (h *Handler) render(c *gin.Context) {
	respond.OK(c, h.Queue.Render())
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.Queue.Refresh(c.Request.Context()); err != nil {
		respond.Upstream(c, backend.Message(err, ""))
		return
	}
	respond.OK(c, h.Queue.Render())
}

func (h *Handler) open(c *gin.Context) {
	panel, err := h.Queue.Open(c.Param("checkpoint_id"))
	if err != nil {
		respond.NotFound(c, err.Error())
		return
	}
	respond.OK(c, panel)
}

type formRequest struct {
	Decision *string `json:"decision"`
	Notes    *string `json:"notes"`
}

func (h *Handler) updateForm(c *gin.Context) {
	var req formRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid request body")
		return
	}
	if req.Decision != nil {
		if err := h.Queue.SetDecision(*req.Decision); err != nil {
			h.formError(c, err)
			return
		}
	}
	if req.Notes != nil {
		if err := h.Queue.SetNotes(*req.Notes); err != nil {
			h.formError(c, err)
			return
		}
	}
	respond.OK(c, h.Queue.Render())
}

func (h *Handler) formError(c *gin.Context, err error) {
	if errors.Is(err, ErrNoReviewOpen) {
		respond.Error(c, http.StatusConflict, "no_review_open", err.Error(), nil)
		return
	}
	respond.Validation(c, err.Error())
}

func (h *Handler) submit(c *gin.Context) {
	out, err := h.Queue.Submit(c.Request.Context())
	switch {
	case err == nil:
		respond.OK(c, out)
	case errors.Is(err, workflows.ErrDecisionRequired):
		respond.Validation(c, err.Error())
	case errors.Is(err, ErrNoReviewOpen), errors.Is(err, ErrSubmitInFlight):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	default:
		respond.Error(c, http.StatusBadGateway, "decision_failed", out.Message, out)
	}
}

func (h *Handler) cancel(c *gin.Context) {
	h.Queue.Cancel()
	c.Status(http.StatusNoContent)
}

func (h *Handler) dismiss(c *gin.Context) {
	h.Queue.DismissNotice()
	c.Status(http.StatusNoContent)
}

func (h *Handler) history(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Validation(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.Queue.History(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "history_unavailable", err.Error(), nil)
		return
	}
	respond.OK(c, gin.H{"entries": entries})
}
