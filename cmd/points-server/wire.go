//go:build wireinject
// +build wireinject

package main

import (
	"Homezy/config"
	"Homezy/handler"
	"Homezy/middleware"
	"Homezy/pkg/client"
	"Homezy/pkg/clock"
	"Homezy/pkg/database"
	"Homezy/pkg/firebase"
	"Homezy/pkg/rocketmq"
	"Homezy/pkg/server"
	"Homezy/service"

	"github.com/google/wire"
)

func InitServer(cfg *config.Config) (*server.AppProvider, func(), error) {
	wire.Build(
		database.NewDB,
		client.NewRedisClient,
		firebase.NewApp,
		firebase.NewFirestore,
		firebase.NewAuth,
		config.ProvideRocketMQConfig,
		rocketmq.NewProducer,
		wire.Bind(new(service.EventPublisher), new(*rocketmq.Producer)),
		clock.New,

		newPointStore,
		newAccountCache,

		service.ProviderSet,
		middleware.NewAuthenticator,

		wire.Struct(new(handler.PointHandler), "*"),
		wire.Struct(new(handler.CouponHandler), "*"),

		wire.Struct(new(server.AppProvider), "*"),
		wire.Struct(new(server.Handlers), "*"),
		server.NewGinEngine,
	)
	return nil, nil, nil
}
