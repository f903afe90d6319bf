package handlers

import (
	"net/http"
	"strconv"

	"github.com/eduexamportal/mailroom/internal/access"
	"github.com/eduexamportal/mailroom/internal/metrics"
	"github.com/eduexamportal/mailroom/internal/models"
	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateHandler serves the email template endpoints.
type TemplateHandler struct {
	svc      *service.TemplateService
	renderer *render.Renderer
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(svc *service.TemplateService, renderer *render.Renderer) *TemplateHandler {
	return &TemplateHandler{svc: svc, renderer: renderer}
}

// TemplateRequest is the body of create and update requests.
type TemplateRequest struct {
	TemplateName   string      `json:"template_name"`
	TemplateType   string      `json:"template_type"`
	Description    string      `json:"description"`
	Subject        string      `json:"subject"`
	MainMessage    string      `json:"main_message"`
	Visibility     string      `json:"visibility"`
	AllowedUserIDs []uuid.UUID `json:"allowed_user_ids"`
	// SetActive is only read on create.
	SetActive bool `json:"set_active"`
}

func (r TemplateRequest) payload() access.Payload {
	return access.Payload{
		Name:           r.TemplateName,
		Type:           r.TemplateType,
		Description:    r.Description,
		Subject:        r.Subject,
		MainMessage:    r.MainMessage,
		Visibility:     r.Visibility,
		AllowedUserIDs: r.AllowedUserIDs,
	}
}

// CreateTemplateResponse is returned after a create.
type CreateTemplateResponse struct {
	Template  *models.EmailTemplate `json:"template"`
	Activated bool                  `json:"activated"`
}

// SetActiveResponse describes the slot a template now occupies.
type SetActiveResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Slot       string    `json:"slot"`
	TemplateID uuid.UUID `json:"template_id"`
}

// ListTemplates godoc
// @Summary List email templates visible to the current user
// @Tags email-templates
// @Security BearerAuth
// @Produce json
// @Param template_type query string false "Only templates of this type"
// @Param include_defaults query bool false "Include default templates (default true)"
// @Success 200 {array} models.EmailTemplate
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /email-templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	includeDefaults := true
	if raw := c.Query("include_defaults"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "include_defaults must be a boolean"})
			return
		}
		includeDefaults = v
	}

	templates, err := h.svc.List(c.Request.Context(), getCaller(c), service.ListRequest{
		TemplateType:    c.Query("template_type"),
		IncludeDefaults: includeDefaults,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, templates)
}

// GetTemplate godoc
// @Summary Get an email template
// @Tags email-templates
// @Security BearerAuth
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.EmailTemplate
// @Failure 404 {object} ErrorResponse
// @Router /email-templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := parseID(c, "template")
	if !ok {
		return
	}

	tpl, err := h.svc.Get(c.Request.Context(), getCaller(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// CreateTemplate godoc
// @Summary Create an email template
// @Tags email-templates
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param template body TemplateRequest true "Template details"
// @Success 201 {object} CreateTemplateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /email-templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.svc.Create(c.Request.Context(), getCaller(c), service.CreateRequest{
		Payload:   req.payload(),
		SetActive: req.SetActive,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateTemplateResponse{Template: res.Template, Activated: res.Activated})
}

// UpdateTemplate godoc
// @Summary Update an email template
// @Tags email-templates
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body TemplateRequest true "Template details"
// @Success 200 {object} models.EmailTemplate
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /email-templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := parseID(c, "template")
	if !ok {
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	tpl, err := h.svc.Update(c.Request.Context(), getCaller(c), id, req.payload())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate godoc
// @Summary Delete an email template
// @Description Deletes the template and clears every user's active slot that points at it
// @Tags email-templates
// @Security BearerAuth
// @Param id path string true "Template ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /email-templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := parseID(c, "template")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), getCaller(c), id); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetActiveTemplate godoc
// @Summary Use a template as the current user's active template for its type
// @Tags email-templates
// @Security BearerAuth
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} SetActiveResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /email-templates/{id}/set-active [post]
func (h *TemplateHandler) SetActiveTemplate(c *gin.Context) {
	id, ok := parseID(c, "template")
	if !ok {
		return
	}

	a, err := h.svc.SetActive(c.Request.Context(), getCaller(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SetActiveResponse{UserID: a.UserID, Slot: string(a.Slot), TemplateID: a.TemplateID})
}

// PreviewTemplate godoc
// @Summary Render a template with sample variables
// @Tags email-templates
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param variables body render.Variables false "Placeholder values"
// @Success 200 {object} render.Email
// @Failure 404 {object} ErrorResponse
// @Router /email-templates/{id}/preview [post]
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := parseID(c, "template")
	if !ok {
		return
	}

	var vars render.Variables
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&vars); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	tpl, err := h.svc.Get(c.Request.Context(), getCaller(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	email, err := h.renderer.Render(render.Template{Subject: tpl.Subject, MainMessage: tpl.MainMessage}, vars)
	if err != nil {
		metrics.RendersTotal.WithLabelValues("preview", "error").Inc()
		handleServiceError(c, err)
		return
	}
	metrics.RendersTotal.WithLabelValues("preview", "ok").Inc()

	c.JSON(http.StatusOK, email)
}

// GetActiveTemplates godoc
// @Summary Get the current user's active template per slot
// @Tags email-templates
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /me/active-templates [get]
func (h *TemplateHandler) GetActiveTemplates(c *gin.Context) {
	caller := getCaller(c)

	active, err := h.svc.ActiveTemplates(c.Request.Context(), caller.ID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make(map[string]*uuid.UUID, len(active))
	for slot, id := range active {
		out[string(slot)] = id
	}
	c.JSON(http.StatusOK, out)
}
