package middleware

import (
	"Homezy/config"
	"Homezy/pkg/context"
	"Homezy/pkg/jwt"
	"Homezy/pkg/log"
	"Homezy/pkg/response"
	stdctx "context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	accessTokenTTL = 2 * time.Hour
	rotateBuffer   = 5 * time.Minute
)

// IDTokenVerifier Firebase ID Token 校验，*auth.Client 实现了该接口
type IDTokenVerifier interface {
	VerifyIDToken(ctx stdctx.Context, idToken string) (*auth.Token, error)
}

type Authenticator struct {
	secret   []byte
	verifier IDTokenVerifier
}

// NewAuthenticator firebase 客户端为 nil 时只接受 HS256 签发的 access token
func NewAuthenticator(conf *config.Config, fb *auth.Client) *Authenticator {
	a := &Authenticator{secret: []byte(conf.Jwt.Secret)}
	if fb != nil {
		a.verifier = fb
	}
	return a
}

func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "缺少 Authorization")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Abort(c, http.StatusUnauthorized, "Authorization 格式错误")
			return
		}

		if a.verifier != nil {
			token, err := a.verifier.VerifyIDToken(c.Request.Context(), parts[1])
			if err == nil {
				role, _ := token.Claims["role"].(string)
				c.Set(context.CtxUserID, token.UID)
				c.Set(context.CtxRole, role)
				c.Next()
				return
			}
			log.L.Debug("firebase id token rejected, fallback to jwt", zap.Error(err))
		}

		claims, err := jwt.ParseToken(a.secret, jwt.TypeAccess, parts[1])
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "token 无效或已过期")
			return
		}
		if jwt.ShouldRotate(claims, rotateBuffer) {
			newToken, err := jwt.GenerateToken(a.secret, claims.UserID, claims.Role, jwt.TypeAccess, accessTokenTTL)
			if err == nil {
				c.Header("X-New-Access-Token", newToken)
			}
		}
		c.Set(context.CtxUserID, claims.UserID)
		c.Set(context.CtxRole, claims.Role)

		c.Next()
	}
}

// RequireAdmin 内部调用与后台操作，需要 admin 角色
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !context.IsAdmin(c) {
			response.Abort(c, http.StatusForbidden, "无权限")
			return
		}
		c.Next()
	}
}
