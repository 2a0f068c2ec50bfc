package user

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
	r.POST("/users", h.create)
	r.GET("/users/:id", h.get)
	r.PUT("/users/:id/runner-profile", middleware.RequireActor(), h.upsertProfile)
	r.GET("/users/:id/runner-profile", h.getProfile)
}

func (h *Handler) create(c *gin.Context) {
	var input CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	u, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": u})
}

func (h *Handler) get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}

func (h *Handler) upsertProfile(c *gin.Context) {
	userID := c.Param("id")
	if middleware.ActorID(c) != userID {
		_ = c.Error(errutil.Forbidden("cannot edit another user's profile", nil))
		return
	}

	var input UpsertProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	profile, err := h.svc.UpsertRunnerProfile(c.Request.Context(), userID, input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := h.svc.GetRunnerProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if profile == nil {
		_ = c.Error(errutil.NotFound("runner profile not found", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}
