package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-console/internal/backend"
	"invoice-console/internal/shared/server/respond"
	"invoice-console/internal/workflows"
)

// Handler exposes the dashboard view over HTTP.
type Handler struct {
	View *View
}

// NewHandler constructs a Handler.
func NewHandler(view *View) *Handler {
	return &Handler{View: view}
}

// RegisterRoutes attaches dashboard routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.render)
	rg.PUT("/dashboard/tab", h.setTab)
	rg.PUT("/dashboard/sort", h.setSort)
	rg.POST("/dashboard/refresh", h.refresh)
	rg.GET("/dashboard/selection", h.detail)
	rg.PUT("/dashboard/selection", h.selectRecord)
	rg.DELETE("/dashboard/selection", h.clearSelection)
	rg.DELETE("/dashboard/error", h.dismissError)
	rg.DELETE("/workflows/:thread_id", h.deleteWorkflow)
}

func (h *Handler) render(c *gin.Context) {
	respond.OK(c, h.View.Render())
}

type tabRequest struct {
	Tab string `json:"tab"`
}

func (h *Handler) setTab(c *gin.Context) {
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid request body")
		return
	}
	tab, err := workflows.ParseTab(req.Tab)
	if err != nil {
		respond.Validation(c, err.Error())
		return
	}
	h.View.SetTab(tab)
	respond.OK(c, h.View.Render())
}

type sortRequest struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// setSort toggles like a header click when direction is omitted.
func (h *Handler) setSort(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid request body")
		return
	}
	field, err := workflows.ParseSortField(req.Field)
	if err != nil {
		respond.Validation(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Direction) == "" {
		h.View.ToggleSort(field)
		respond.OK(c, h.View.Render())
		return
	}
	dir, err := workflows.ParseDirection(req.Direction)
	if err != nil {
		respond.Validation(c, err.Error())
		return
	}
	h.View.SetSort(workflows.SortState{Field: field, Direction: dir})
	respond.OK(c, h.View.Render())
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.View.Refresh(c.Request.Context()); err != nil {
		respond.Upstream(c, backend.Message(err, ""))
		return
	}
	respond.OK(c, h.View.Render())
}

type selectionRequest struct {
	Key string `json:"key"`
}

func (h *Handler) selectRecord(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		respond.Validation(c, "key is required")
		return
	}
	if !h.View.Select(strings.TrimSpace(req.Key)) {
		respond.NotFound(c, "workflow not found")
		return
	}
	h.detail(c)
}

func (h *Handler) detail(c *gin.Context) {
	d, ok := h.View.Detail()
	if !ok {
		respond.NotFound(c, "no workflow selected")
		return
	}
	respond.OK(c, d)
}

func (h *Handler) clearSelection(c *gin.Context) {
	h.View.ClearSelection()
	c.Status(http.StatusNoContent)
}

func (h *Handler) dismissError(c *gin.Context) {
	h.View.DismissError()
	c.Status(http.StatusNoContent)
}

// deleteWorkflow treats ?confirm=true as the user's confirmation.
func (h *Handler) deleteWorkflow(c *gin.Context) {
	threadID := c.Param("thread_id")
	var prompt string
	confirm := ConfirmFunc(func(_ context.Context, p string) bool {
		prompt = p
		return c.Query("confirm") == "true"
	})

	err := h.View.Delete(c.Request.Context(), threadID, confirm)
	switch {
	case err == nil:
		respond.OK(c, h.View.Render())
	case errors.Is(err, ErrDeleteDeclined):
		respond.Error(c, http.StatusConflict, "confirmation_required", prompt, gin.H{"confirm": "repeat the request with ?confirm=true"})
	case errors.Is(err, ErrDeleteInFlight):
		respond.Error(c, http.StatusConflict, "delete_in_progress", err.Error(), nil)
	case errors.Is(err, backend.ErrThreadIDRequired):
		respond.Validation(c, err.Error())
	default:
		respond.Upstream(c, backend.Message(err, ""))
	}
}
