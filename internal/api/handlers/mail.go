package handlers

import (
	"net/http"

	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/eduexamportal/mailroom/internal/service"
	"github.com/gin-gonic/gin"
)

// MailHandler accepts outbound mail requests and reports their status.
type MailHandler struct {
	svc *service.MailService
}

// NewMailHandler creates a new MailHandler.
func NewMailHandler(svc *service.MailService) *MailHandler {
	return &MailHandler{svc: svc}
}

// SendMailRequest is the body of a send request.
type SendMailRequest struct {
	TemplateType   string           `json:"template_type" binding:"required"`
	RecipientEmail string           `json:"recipient_email" binding:"required"`
	Variables      render.Variables `json:"variables"`
}

// SendMail godoc
// @Summary Queue a templated email
// @Description The sender's active template for the type is used, falling back to the default template
// @Tags mail
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SendMailRequest true "Mail request"
// @Success 202 {object} models.Job
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /mail/send [post]
func (h *MailHandler) SendMail(c *gin.Context) {
	var req SendMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	job, err := h.svc.Send(c.Request.Context(), getCaller(c), service.SendRequest{
		TemplateType: req.TemplateType,
		Recipient:    req.RecipientEmail,
		Variables:    req.Variables,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob godoc
// @Summary Get a mail job
// @Tags mail
// @Security BearerAuth
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
// @Failure 404 {object} ErrorResponse
// @Router /mail/jobs/{id} [get]
func (h *MailHandler) GetJob(c *gin.Context) {
	id, ok := parseID(c, "job")
	if !ok {
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), getCaller(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
