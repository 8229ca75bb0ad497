// Package firebase 初始化 Firebase App 及其 Firestore、Auth 客户端
package firebase

import (
	"Homezy/config"
	"Homezy/pkg/log"
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewApp 未配置 firebase 时返回 nil
func NewApp(conf *config.Config) (*firebase.App, error) {
	fc := conf.Firebase
	if fc == nil || fc.ProjectID == "" {
		if conf.Points.Store == config.StoreFirestore {
			return nil, fmt.Errorf("points.store=firestore 需要配置 firebase.project_id")
		}
		return nil, nil
	}

	var opts []option.ClientOption
	if fc.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(fc.CredentialsFile))
	}
	app, err := firebase.NewApp(context.Background(), &firebase.Config{ProjectID: fc.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	log.L.Info("firebase app initialized")
	return app, nil
}

// NewFirestore 只在 points.store=firestore 时创建客户端
func NewFirestore(conf *config.Config, app *firebase.App) (*firestore.Client, func(), error) {
	if app == nil || conf.Points.Store != config.StoreFirestore {
		return nil, func() {}, nil
	}
	client, err := app.Firestore(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("init firestore client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// NewAuth 只在开启 ID Token 校验时创建客户端
func NewAuth(conf *config.Config, app *firebase.App) (*auth.Client, error) {
	if app == nil || !conf.Firebase.VerifyIDToken {
		return nil, nil
	}
	client, err := app.Auth(context.Background())
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return client, nil
}
