package payout

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
	auth := r.Group("/earnings", middleware.RequireActor())
	auth.GET("", h.list)
	auth.GET("/:id", h.get)
	auth.POST("/:id/retry", h.retry)
}

func (h *Handler) list(c *gin.Context) {
	earnings, err := h.svc.ListByRunner(c.Request.Context(), middleware.ActorID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": earnings})
}

func (h *Handler) get(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if e.RunnerID != middleware.ActorID(c) {
		_ = c.Error(errutil.Forbidden("not your earning", nil))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": e})
}

func (h *Handler) retry(c *gin.Context) {
	e, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if e.RunnerID != middleware.ActorID(c) {
		_ = c.Error(errutil.Forbidden("not your earning", nil))
		return
	}

	ok := h.svc.ProcessPayout(c.Request.Context(), e.ID)

	e, err = h.svc.Get(c.Request.Context(), e.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"settled": ok, "earning": e}})
}
