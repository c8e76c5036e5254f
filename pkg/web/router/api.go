package router

import (
	"fmt"

	"github.com/cloudwego/hertz/pkg/app/server"
	"gorm.io/gorm"

	"api-yamdb/pkg/common/config"
	"api-yamdb/pkg/common/mail"
	"api-yamdb/pkg/core/authz"
	catalogimpl "api-yamdb/pkg/core/catalog/repository/dao/impl"
	catalogservice "api-yamdb/pkg/core/catalog/service"
	reviewimpl "api-yamdb/pkg/core/review/repository/dao/impl"
	reviewservice "api-yamdb/pkg/core/review/service"
	userimpl "api-yamdb/pkg/core/user/repository/dao/impl"
	userservice "api-yamdb/pkg/core/user/service"
	"api-yamdb/pkg/web/handler"
	"api-yamdb/pkg/web/middleware"
)

// Deps 路由需要的全部依赖
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Enforcer *authz.Enforcer
	Tokens   *userservice.TokenIssuer
	Users    *userservice.Service
	Catalog  *catalogservice.Service
	Reviews  *reviewservice.Service
}

// NewDeps 组装仓储和服务
func NewDeps(cfg *config.Config, db *gorm.DB, mailer mail.Mailer) (*Deps, error) {
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return nil, err
	}
	tokens, err := userservice.NewTokenIssuer(cfg.Middleware.JWT)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	return &Deps{
		Config:   cfg,
		DB:       db,
		Enforcer: enforcer,
		Tokens:   tokens,
		Users: userservice.NewUserService(
			userimpl.NewGormUserRepository(db), mailer, tokens, cfg.Auth, cfg.Mail,
		),
		Catalog: catalogservice.NewCatalogService(
			catalogimpl.NewGormCategoryRepository(db),
			catalogimpl.NewGormGenreRepository(db),
			catalogimpl.NewGormTitleRepository(db),
		),
		Reviews: reviewservice.NewReviewService(reviewimpl.NewGormReviewRepository(db), enforcer),
	}, nil
}

// RegisterAPIs 注册所有API路由
func RegisterAPIs(h *server.Hertz, deps *Deps) {
	cfg := deps.Config
	paginator := handler.NewPaginator(cfg.Pagination)

	healthHandler := handler.NewHealthCheckHandler(deps.DB)
	userHandler := handler.NewUserHandler(deps.Users, deps.Enforcer, paginator)
	catalogHandler := handler.NewCatalogHandler(deps.Catalog, deps.Enforcer, paginator)
	reviewHandler := handler.NewReviewHandler(deps.Reviews, paginator)

	// 注册全局中间件（按执行顺序）
	h.Use(
		middleware.RecoveryMiddleware(cfg),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(),
		middleware.SecurityCheckMiddleware(cfg.Middleware.Security),
		middleware.TimeoutMiddleware(cfg.Middleware.Timeout.RequestTimeout),
		middleware.CORSMiddleware(cfg.Middleware.CORS),
		middleware.RateLimitMiddleware(middleware.NewRateLimiter(
			cfg.Middleware.RateLimit.Rate,
			cfg.Middleware.RateLimit.Interval,
		)),
		middleware.ErrorRenderer(cfg),
		middleware.PrincipalMiddleware(deps.Tokens, deps.Users),
	)

	// 基础接口组
	h.GET("/health", healthHandler.AdvancedHealthCheck)
	h.GET("/metrics", handler.MetricsHandler())

	// 业务接口组
	api := h.Group("/api/v1")
	{
		auth := api.Group("/auth")
		auth.POST("/signup", userHandler.Signup)
		auth.POST("/token", userHandler.Token)
		auth.POST("/token/refresh", userHandler.Refresh)

		users := api.Group("/users")
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/me", userHandler.Me)
		users.PATCH("/me", userHandler.UpdateMe)
		users.GET("/:username", userHandler.Get)
		users.PATCH("/:username", userHandler.Update)
		users.DELETE("/:username", userHandler.Delete)

		categories := api.Group("/categories")
		categories.GET("", catalogHandler.ListCategories)
		categories.POST("", catalogHandler.CreateCategory)
		categories.DELETE("/:slug", catalogHandler.DeleteCategory)

		genres := api.Group("/genres")
		genres.GET("", catalogHandler.ListGenres)
		genres.POST("", catalogHandler.CreateGenre)
		genres.DELETE("/:slug", catalogHandler.DeleteGenre)

		titles := api.Group("/titles")
		titles.GET("", catalogHandler.ListTitles)
		titles.POST("", catalogHandler.CreateTitle)
		titles.GET("/:title_id", catalogHandler.GetTitle)
		titles.PATCH("/:title_id", catalogHandler.UpdateTitle)
		titles.DELETE("/:title_id", catalogHandler.DeleteTitle)

		reviews := titles.Group("/:title_id/reviews")
		reviews.GET("", reviewHandler.ListReviews)
		reviews.POST("", reviewHandler.CreateReview)
		reviews.GET("/:review_id", reviewHandler.GetReview)
		reviews.PATCH("/:review_id", reviewHandler.UpdateReview)
		reviews.DELETE("/:review_id", reviewHandler.DeleteReview)

		comments := reviews.Group("/:review_id/comments")
		comments.GET("", reviewHandler.ListComments)
		comments.POST("", reviewHandler.CreateComment)
		comments.GET("/:comment_id", reviewHandler.GetComment)
		comments.PATCH("/:comment_id", reviewHandler.UpdateComment)
		comments.DELETE("/:comment_id", reviewHandler.DeleteComment)
	}
}
