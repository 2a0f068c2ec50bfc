package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"errandbit/pkg/errutil"
	"errandbit/pkg/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.Engine) {
	r.POST("/jobs/:id/payments/confirm", middleware.RequireActor(), h.confirm)
	r.GET("/jobs/:id/payments", h.getByJob)
}

func (h *Handler) confirm(c *gin.Context) {
	var input ConfirmInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
	}

	p, err := h.svc.Confirm(c.Request.Context(), c.Param("id"), middleware.ActorID(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": p})
}

func (h *Handler) getByJob(c *gin.Context) {
	p, err := h.svc.GetByJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
}
