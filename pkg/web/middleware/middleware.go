package middleware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"
	"github.com/hertz-contrib/cors"

	"api-yamdb/pkg/common/config"
	"api-yamdb/pkg/common/metrics"
)

const (
	HeaderRequestID = "X-Request-Id"
	keyRequestID    = "request_id"
)

// RequestIDFrom 取当前请求的 ID，没有时返回空串
func RequestIDFrom(c *app.RequestContext) string {
	return c.GetString(keyRequestID)
}

// RequestIDMiddleware 沿用调用方传入的 X-Request-Id，否则生成一个
func RequestIDMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next(ctx)
	}
}

// LoggerMiddleware 结构化的请求日志记录
func LoggerMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx) // 放行到后续处理器
		latency := time.Since(start)

		hlog.CtxInfof(ctx, "| %3d | %13v | %15s | %-7s | %s | rid=%s UA=%s",
			c.Response.StatusCode(),
			latency,
			c.ClientIP(),
			c.Method(),
			c.Path(),
			RequestIDFrom(c),
			c.GetHeader("User-Agent"),
		)
	}
}

// MetricsMiddleware 按路由模板统计请求数和耗时
func MetricsMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(string(c.Method()), route, c.Response.StatusCode(), time.Since(start))
	}
}

/*
	启动时指定环境变量
	export APP_ENV=production
	go run ./cmd/web
*/

// RecoveryMiddleware 增强型异常捕获
func RecoveryMiddleware(cfg *config.Config) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				stack := string(debug.Stack())
				hlog.CtxErrorf(ctx, "[PANIC RECOVERED] rid=%s %v\n%s", RequestIDFrom(c), err, stack)

				if cfg.IsProd() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]interface{}{
						"detail": "internal server error",
					})
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]interface{}{
					"detail": fmt.Sprintf("%v", err),
					"stack":  strings.Split(stack, "\n"),
				})
			}
		}()
		c.Next(ctx)
	}
}

// CORSMiddleware 跨域配置。Authorization 和 X-Request-Id 总是允许，
// X-Request-Id 总是暴露给前端，方便对照服务端日志。
func CORSMiddleware(corsConfig config.CORSConfig) app.HandlerFunc {
	return cors.New(
		cors.Config{
			AllowOrigins:     corsConfig.AllowOrigins,
			AllowMethods:     corsConfig.AllowMethods,
			AllowHeaders:     withHeaders(corsConfig.AllowHeaders, "Authorization", HeaderRequestID),
			ExposeHeaders:    withHeaders(corsConfig.ExposeHeaders, HeaderRequestID),
			AllowCredentials: corsConfig.AllowCredentials,
			MaxAge:           corsConfig.MaxAge,
			// 可信域名本身及其子域名
			AllowOriginFunc: func(origin string) bool {
				u, err := url.Parse(origin)
				if err != nil || u.Hostname() == "" {
					return false
				}
				host := strings.ToLower(u.Hostname())
				for _, domain := range corsConfig.TrustedDomains {
					domain = strings.ToLower(strings.TrimPrefix(domain, "."))
					if host == domain || strings.HasSuffix(host, "."+domain) {
						return true
					}
				}
				return false
			},
		},
	)
}

func withHeaders(headers []string, required ...string) []string {
	out := append([]string(nil), headers...)
	for _, r := range required {
		found := false
		for _, h := range out {
			if strings.EqualFold(h, r) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r)
		}
	}
	return out
}

// TimeoutMiddleware 给后续处理器一个带截止时间的 context，数据库调用随之取消
func TimeoutMiddleware(seconds int) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if seconds <= 0 {
			c.Next(ctx)
			return
		}
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()

		c.Next(timeoutCtx)

		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			hlog.CtxWarnf(ctx, "request timeout rid=%s path=%s", RequestIDFrom(c), c.Path())
		}
	}
}

// SecurityCheckMiddleware 全局安全校验中间件
func SecurityCheckMiddleware(sec config.SecurityConfig) app.HandlerFunc {
	// 预编译恶意字符正则
	xssRegex := regexp.MustCompile(`(?i)<script.*?>|</script>|alert\(|onerror=`)

	allowed := make(map[string]bool, len(sec.AllowedMethods))
	for _, m := range sec.AllowedMethods {
		allowed[strings.ToUpper(m)] = true
	}

	return func(ctx context.Context, c *app.RequestContext) {
		// 防护机制1：检查 Host 和 User-Agent
		if len(sec.AllowedHosts) > 0 && !hostAllowed(string(c.Host()), sec.AllowedHosts) {
			securityResponse(ctx, c, http.StatusBadRequest, fmt.Sprintf("Invalid host header %q.", c.Host()))
			return
		}
		if sec.RequireUserAgent && len(c.GetHeader("User-Agent")) == 0 {
			securityResponse(ctx, c, http.StatusBadRequest, "missing required header: User-Agent")
			return
		}

		// 防护机制2：请求体大小限制
		if sec.MaxBodySize > 0 && int64(c.Request.Header.ContentLength()) > sec.MaxBodySize {
			securityResponse(ctx, c, http.StatusRequestEntityTooLarge, "request body exceeds max size")
			return
		}

		// 防护机制3：参数恶意字符检查
		if hasMaliciousQuery(c, xssRegex) {
			securityResponse(ctx, c, http.StatusUnprocessableEntity, "request contains invalid characters")
			return
		}

		// 防护机制4：检查HTTP方法
		if !allowed[string(c.Method())] {
			securityResponse(ctx, c, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", c.Method()))
			return
		}

		c.Next(ctx)
	}
}

// hostAllowed "*" 放行全部，".example.com" 匹配 example.com 及其子域名
func hostAllowed(host string, allowed []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case host == pattern:
			return true
		}
	}
	return false
}

func hasMaliciousQuery(c *app.RequestContext, xss *regexp.Regexp) bool {
	found := false
	c.QueryArgs().VisitAll(func(key, value []byte) {
		if !found && (xss.Match(key) || xss.Match(value)) {
			found = true
		}
	})
	return found
}

// 安全响应统一处理
func securityResponse(ctx context.Context, c *app.RequestContext, status int, msg string) {
	hlog.CtxWarnf(ctx, "SecurityAlert[%d] rid=%s path=%s: %s", status, RequestIDFrom(c), c.Path(), msg)
	c.AbortWithStatusJSON(status, map[string]interface{}{
		"detail": msg,
	})
}
