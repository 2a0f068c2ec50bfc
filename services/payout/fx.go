package payout

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"errandbit/pkg/taskname"
)

var Module = fx.Module("payout.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

// TaskModule wires the payout worker onto the asynq mux. The worker binary
// loads this instead of the HTTP module.
var TaskModule = fx.Module("payout.tasks",
	fx.Provide(NewService),
	fx.Invoke(registerTasks),
)

func registerRoutes(r *gin.Engine, h *Handler) {
	h.Register(r)
}

func registerTasks(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.PayoutProcess, svc.HandleProcessPayoutTask)
}
