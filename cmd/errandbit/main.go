package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"errandbit/pkg/config"
	"errandbit/pkg/db"
	"errandbit/pkg/health"
	"errandbit/pkg/lightning"
	"errandbit/pkg/logger"
	"errandbit/pkg/redis"
	"errandbit/pkg/secretmanager"
	"errandbit/pkg/server"
	"errandbit/pkg/task"
	"errandbit/services/job"
	"errandbit/services/payment"
	"errandbit/services/payout"
	"errandbit/services/review"
	"errandbit/services/user"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		lightning.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(migrate, instrumentDB),
		user.Module,
		job.Module,
		payment.Module,
		payout.Module,
		review.Module,
		health.Module,
		server.ProvideHTTPServer,
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

func instrumentDB(gdb *gorm.DB, cfg *config.Config) error {
	if err := db.Otel(gdb); err != nil {
		return err
	}
	return db.Metric(gdb, cfg.Database.DBNAME)
}

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&user.User{},
		&user.RunnerProfile{},
		&job.Job{},
		&payment.Payment{},
		&payout.Earning{},
		&review.Review{},
	)
}
