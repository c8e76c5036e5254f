package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/authz"
	"api-yamdb/pkg/core/user/model"
	"api-yamdb/pkg/core/user/service"
)

const keyPrincipal = "principal"

// IdentitySource 解析请求里的访问令牌
type IdentitySource interface {
	IdentityFromRequest(ctx context.Context, c *app.RequestContext) (int64, error)
}

// UserLoader 按令牌里的 ID 加载用户
type UserLoader interface {
	Authenticate(ctx context.Context, userID int64) (model.User, error)
}

var (
	_ IdentitySource = (*service.TokenIssuer)(nil)
	_ UserLoader     = (*service.Service)(nil)
)

// PrincipalFrom 取当前请求的身份，未经过 PrincipalMiddleware 时按匿名处理
func PrincipalFrom(c *app.RequestContext) authz.Principal {
	if v, ok := c.Get(keyPrincipal); ok {
		if p, ok := v.(authz.Principal); ok {
			return p
		}
	}
	return authz.Anonymous
}

// PrincipalMiddleware 可选认证：没有 Authorization 头按匿名继续，令牌无效直接 401
func PrincipalMiddleware(tokens IdentitySource, users UserLoader) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		userID, err := tokens.IdentityFromRequest(ctx, c)
		if err != nil {
			hlog.CtxInfof(ctx, "[AUTH] rid=%s rejected token: %v", RequestIDFrom(c), err)
			_ = c.Error(apperrors.Public(err))
			c.Abort()
			return
		}

		principal := authz.Anonymous
		if userID != 0 {
			user, err := users.Authenticate(ctx, userID)
			if err != nil {
				_ = c.Error(apperrors.Public(err))
				c.Abort()
				return
			}
			principal = authz.Principal{
				UserID:   user.ID,
				Username: user.Username,
				Role:     string(user.EffectiveRole()),
			}
		}
		c.Set(keyPrincipal, principal)
		c.Next(ctx)
	}
}

// ErrorRenderer 把处理器通过 c.Error 上报的最后一个错误写成响应
func ErrorRenderer(cfg *config.Config) app.HandlerFunc {
	verbose := !cfg.IsProd()
	realm := cfg.Middleware.JWT.Realm

	return func(ctx context.Context, c *app.RequestContext) {
		c.Next(ctx)

		last := c.Errors.Last()
		if last == nil {
			return
		}

		status, body := apperrors.Render(last, verbose)
		switch {
		case status >= http.StatusInternalServerError:
			hlog.CtxErrorf(ctx, "[ERROR] rid=%s %s %s: %v", RequestIDFrom(c), c.Method(), c.Path(), last.Err)
		case status == http.StatusUnauthorized:
			c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s"`, realm))
		}
		c.AbortWithStatusJSON(status, body)
	}
}
