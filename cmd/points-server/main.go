package main

import (
	"Homezy/config"
	"Homezy/pkg/database"
	"Homezy/pkg/log"
	"Homezy/pkg/server"
	"Homezy/pkg/snowflake"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	path := fmt.Sprintf("configs/config.%s.yaml", env)
	cfg := config.New(path)
	log.SetDebug(cfg.Debug())

	if err := snowflake.Init(cfg.Points.NodeID); err != nil {
		log.L.Fatal("init snowflake", zap.Int64("node_id", cfg.Points.NodeID), zap.Error(err))
	}

	cliApp := &cli.App{
		Name:  "points-server",
		Usage: "Homezy points and rewards service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server",
				Action: func(ctx *cli.Context) error {
					appProvider, cleanup, err := InitServer(cfg)
					if err != nil {
						return err
					}
					defer cleanup()
					return server.Run(ctx, appProvider)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update mysql tables",
				Action: func(ctx *cli.Context) error {
					db, err := database.NewDB(cfg)
					if err != nil {
						return err
					}
					if db == nil {
						return fmt.Errorf("points.store=%s 不需要迁移", cfg.Points.Store)
					}
					if err := database.Migrate(db); err != nil {
						return err
					}
					log.L.Info("migrate done")
					return nil
				},
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.L.Fatal("failed to start server", zap.Error(err))
	}
}
