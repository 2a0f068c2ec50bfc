package review

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
	r.POST("/reviews", middleware.RequireActor(), h.create)
	r.GET("/users/:id/reviews", h.listByUser)
	r.GET("/users/:id/rating", h.rating)
}

func (h *Handler) create(c *gin.Context) {
	var input CreateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	r, err := h.svc.Create(c.Request.Context(), middleware.ActorID(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": r})
}

func (h *Handler) listByUser(c *gin.Context) {
	reviews, err := h.svc.ListByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": reviews})
}

func (h *Handler) rating(c *gin.Context) {
	summary, err := h.svc.GetRatingSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}
