package main

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"api-yamdb/pkg/common/config"
	"api-yamdb/pkg/common/mail"
	"api-yamdb/pkg/core/schema"
	"api-yamdb/pkg/web/router"
)

func main() {
	// 初始化配置
	cfg := config.Load()

	// 初始化数据库连接
	db, err := cfg.InitDB()
	if err != nil {
		hlog.Fatalf("Failed to initialize database: %v", err)
	}
	if err := schema.Migrate(db); err != nil {
		hlog.Fatalf("Failed to migrate schema: %v", err)
	}

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		hlog.Fatalf("Failed to initialize mailer: %v", err)
	}

	// 组装仓储和服务
	deps, err := router.NewDeps(cfg, db, mailer)
	if err != nil {
		hlog.Fatalf("Failed to build dependencies: %v", err)
	}

	// 创建Hertz实例
	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(int(cfg.Middleware.Security.MaxBodySize)),
	)

	// 注册路由
	router.RegisterAPIs(h, deps)

	hlog.Infof("api-yamdb listening on %s (env=%s, db=%s)", cfg.Server.Address, cfg.Env, cfg.Database.Driver)
	// 启动服务
	h.Spin()
}
