package handler

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler 把 net/http 的 Prometheus 处理器挂到 hertz 上
func MetricsHandler() app.HandlerFunc {
	return wrapHTTPHandler(promhttp.Handler())
}

func wrapHTTPHandler(h http.Handler) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&c.Request)
		if err != nil {
			hlog.CtxErrorf(ctx, "[METRICS] convert request: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]interface{}{
				"detail": "internal server error",
			})
			return
		}
		h.ServeHTTP(adaptor.GetCompatResponseWriter(&c.Response), req.WithContext(ctx))
	}
}
