package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"errandbit/pkg/config"
	"errandbit/pkg/db"
	"errandbit/pkg/lightning"
	"errandbit/pkg/logger"
	"errandbit/pkg/secretmanager"
	"errandbit/pkg/task"
	"errandbit/services/payout"
)

// The worker drains payout:process tasks. It shares the database with the
// API binary but serves no HTTP traffic.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		lightning.Module,
		fx.Provide(provideSnowflakeNode),
		payout.TaskModule,
		task.Server,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
