package job

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
	r.GET("/jobs", h.list)
	r.GET("/jobs/:id", h.get)

	auth := r.Group("/jobs", middleware.RequireActor())
	auth.POST("", h.create)
	auth.POST("/:id/accept", h.transitionTo(StatusAccepted))
	auth.POST("/:id/start", h.transitionTo(StatusInProgress))
	auth.POST("/:id/complete", h.transitionTo(StatusCompleted))
	auth.POST("/:id/cancel", h.transitionTo(StatusCancelled))
	auth.DELETE("/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var input CreateJobInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	j, err := h.svc.Create(c.Request.Context(), middleware.ActorID(c), input)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": j})
}

func (h *Handler) get(c *gin.Context) {
	j, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": j})
}

func (h *Handler) list(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query parameters", err))
		return
	}

	jobs, pageInfo, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": jobs, "page_info": pageInfo})
}

func (h *Handler) transitionTo(target Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		var extra TransitionExtra
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&extra); err != nil {
				_ = c.Error(errutil.BadRequest("invalid request body", err))
				return
			}
		}

		j, err := h.svc.Transition(c.Request.Context(), c.Param("id"), middleware.ActorID(c), target, extra)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": j})
	}
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.ActorID(c)); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
