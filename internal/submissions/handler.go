package submissions

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"invoice-console/internal/backend"
	"invoice-console/internal/shared/server/respond"
)

const (
	maxUploadBytes = 20 << 20
	filesField     = "files"
)

// Handler exposes the submission view over HTTP.
type Handler struct {
	View *View
}

// NewHandler constructs a Handler.
func NewHandler(view *View) *Handler {
	return &Handler{View: view}
}

// RegisterRoutes attaches submission routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/submit", h.render)
	rg.DELETE("/submit/error", h.dismiss)
	rg.POST("/invoices", h.submit)
	rg.POST("/attachments/inspect", h.inspect)
	rg.GET("/workflows/:thread_id/status", h.status)
}

func (h *Handler) render(c *gin.Context) {
	respond.OK(c, h.View.Render())
}

func (h *Handler) dismiss(c *gin.Context) {
	h.View.DismissError()
	c.Status(http.StatusNoContent)
}

// submit accepts either a JSON form or multipart/form-data with the form
// JSON in the "invoice" field and files under "files".
func (h *Handler) submit(c *gin.Context) {
	form, ok := h.bindForm(c)
	if !ok {
		return
	}
	res, err := h.View.Submit(c.Request.Context(), form)
	switch {
	case err == nil:
		respond.Created(c, res)
	case IsValidation(err):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, err.Error(), validationDetails(err))
	case errors.Is(err, ErrSubmitInFlight):
		respond.Error(c, http.StatusConflict, "submit_in_progress", err.Error(), nil)
	default:
		respond.Upstream(c, backend.Message(err, ""))
	}
}

func (h *Handler) bindForm(c *gin.Context) (Form, bool) {
	form := NewForm()
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&form); err != nil {
			respond.Validation(c, "invalid request body")
			return Form{}, false
		}
		return form, true
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	mf, err := c.MultipartForm()
	if err != nil {
		respond.Validation(c, "invalid multipart body")
		return Form{}, false
	}
	if raw := mf.Value["invoice"]; len(raw) > 0 {
		if err := json.Unmarshal([]byte(raw[0]), &form); err != nil {
			respond.Validation(c, "invoice must be a JSON object")
			return Form{}, false
		}
	}
	for _, fh := range mf.File[filesField] {
		data, err := readFile(fh)
		if err != nil {
			respond.Validation(c, "failed to read "+fh.Filename)
			return Form{}, false
		}
		if err := form.AddAttachment(fh.Filename, data); err != nil {
			respond.Validation(c, err.Error())
			return Form{}, false
		}
	}
	return form, true
}

func (h *Handler) inspect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	mf, err := c.MultipartForm()
	if err != nil {
		respond.Validation(c, "invalid multipart body")
		return
	}
	infos := make([]AttachmentInfo, 0, len(mf.File[filesField]))
	for _, fh := range mf.File[filesField] {
		if !Accepts(fh.Filename) {
			respond.Validation(c, ErrUnsupportedAttachment.Error()+": "+fh.Filename)
			return
		}
		data, err := readFile(fh)
		if err != nil {
			respond.Validation(c, "failed to read "+fh.Filename)
			return
		}
		infos = append(infos, Inspect(Attachment{Name: fh.Filename, Data: data}))
	}
	respond.OK(c, gin.H{"attachments": infos})
}

func (h *Handler) status(c *gin.Context) {
	res, err := h.View.Status(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		if errors.Is(err, backend.ErrThreadIDRequired) {
			respond.Validation(c, err.Error())
			return
		}
		respond.Upstream(c, backend.Message(err, ""))
		return
	}
	respond.OK(c, res)
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func validationDetails(err error) any {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return gin.H{"fields": verr.Fields}
	}
	return nil
}
