package handler

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"api-yamdb/pkg/core/authz"
	"api-yamdb/pkg/core/user/repository/dao"
	"api-yamdb/pkg/core/user/service"
	"api-yamdb/pkg/web/middleware"
	"api-yamdb/pkg/web/model"
)

type UserHandler struct {
	users     service.UserService
	enforcer  *authz.Enforcer
	paginator Paginator
}

func NewUserHandler(users service.UserService, enforcer *authz.Enforcer, paginator Paginator) *UserHandler {
	return &UserHandler{users: users, enforcer: enforcer, paginator: paginator}
}

// Signup 注册或重发确认码
func (h *UserHandler) Signup(ctx context.Context, c *app.RequestContext) {
	var req service.SignupInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	user, err := h.users.Signup(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	hlog.CtxInfof(ctx, "[SIGNUP] rid=%s code sent to %s", middleware.RequestIDFrom(c), user.Username)
	c.JSON(http.StatusOK, model.SignupRes{Username: user.Username, Email: user.Email})
}

// Token 用确认码换取令牌
func (h *UserHandler) Token(ctx context.Context, c *app.RequestContext) {
	var req service.TokenInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	pair, err := h.users.ExchangeToken(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewTokenRes(pair, true))
}

func (h *UserHandler) Refresh(ctx context.Context, c *app.RequestContext) {
	var req model.RefreshReq
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	pair, err := h.users.RefreshToken(ctx, req.Refresh)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewTokenRes(pair, false))
}

func (h *UserHandler) Me(ctx context.Context, c *app.RequestContext) {
	p := middleware.PrincipalFrom(c)
	if err := h.enforcer.Authorize(p, authz.ResourceProfile, authz.ActionRead, p.UserID); err != nil {
		fail(c, err)
		return
	}

	user, err := h.users.Authenticate(ctx, p.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserRes(user))
}

// UpdateMe 修改自己的资料，role 字段被忽略
func (h *UserHandler) UpdateMe(ctx context.Context, c *app.RequestContext) {
	p := middleware.PrincipalFrom(c)
	if err := h.enforcer.Authorize(p, authz.ResourceProfile, authz.ActionUpdate, p.UserID); err != nil {
		fail(c, err)
		return
	}

	var req service.ProfilePatch
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	user, err := h.users.UpdateProfile(ctx, p.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserRes(user))
}

func (h *UserHandler) List(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ActionRead) {
		return
	}
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}

	users, total, err := h.users.List(ctx, dao.UserFilter{
		Search: c.Query("search"),
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewUserList(users))
}

func (h *UserHandler) Create(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ActionCreate) {
		return
	}
	var req service.CreateUserInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	user, err := h.users.Create(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewUserRes(user))
}

func (h *UserHandler) Get(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ActionRead) {
		return
	}
	user, err := h.users.Get(ctx, c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserRes(user))
}

func (h *UserHandler) Update(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ActionUpdate) {
		return
	}
	var req service.ProfilePatch
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	user, err := h.users.Update(ctx, c.Param("username"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewUserRes(user))
}

func (h *UserHandler) Delete(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ActionDelete) {
		return
	}
	if err := h.users.Delete(ctx, c.Param("username")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// authorize 用户管理接口只对管理员开放
func (h *UserHandler) authorize(c *app.RequestContext, action authz.Action) bool {
	if err := h.enforcer.Authorize(middleware.PrincipalFrom(c), authz.ResourceUser, action, 0); err != nil {
		fail(c, err)
		return false
	}
	return true
}
