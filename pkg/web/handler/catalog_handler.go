package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/authz"
	"api-yamdb/pkg/core/catalog/repository/dao"
	"api-yamdb/pkg/core/catalog/service"
	"api-yamdb/pkg/web/middleware"
	"api-yamdb/pkg/web/model"
)

type CatalogHandler struct {
	catalog   service.CatalogService
	enforcer  *authz.Enforcer
	paginator Paginator
}

func NewCatalogHandler(catalog service.CatalogService, enforcer *authz.Enforcer, paginator Paginator) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, enforcer: enforcer, paginator: paginator}
}

func (h *CatalogHandler) authorize(c *app.RequestContext, res authz.Resource, action authz.Action) bool {
	if err := h.enforcer.Authorize(middleware.PrincipalFrom(c), res, action, 0); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// region 分类

func (h *CatalogHandler) ListCategories(ctx context.Context, c *app.RequestContext) {
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}
	categories, total, err := h.catalog.ListCategories(ctx, dao.TermFilter{
		Search: c.Query("search"),
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewCategoryList(categories))
}

func (h *CatalogHandler) CreateCategory(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceCategory, authz.ActionCreate) {
		return
	}
	var req service.TermInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	category, err := h.catalog.CreateCategory(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewCategoryRes(category))
}

func (h *CatalogHandler) DeleteCategory(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceCategory, authz.ActionDelete) {
		return
	}
	if err := h.catalog.DeleteCategory(ctx, c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// region 体裁

func (h *CatalogHandler) ListGenres(ctx context.Context, c *app.RequestContext) {
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}
	genres, total, err := h.catalog.ListGenres(ctx, dao.TermFilter{
		Search: c.Query("search"),
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewGenreList(genres))
}

func (h *CatalogHandler) CreateGenre(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceGenre, authz.ActionCreate) {
		return
	}
	var req service.TermInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	genre, err := h.catalog.CreateGenre(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewGenreRes(genre))
}

func (h *CatalogHandler) DeleteGenre(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceGenre, authz.ActionDelete) {
		return
	}
	if err := h.catalog.DeleteGenre(ctx, c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// region 作品

func (h *CatalogHandler) ListTitles(ctx context.Context, c *app.RequestContext) {
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}

	filter := dao.TitleFilter{
		Category: c.Query("category"),
		Genre:    c.Query("genre"),
		Name:     c.Query("name"),
		Offset:   page.Offset(),
		Limit:    page.Size,
	}
	if v := c.Query("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			fail(c, apperrors.Field("year", "Enter a number."))
			return
		}
		filter.Year = year
	}

	titles, total, err := h.catalog.ListTitles(ctx, filter)
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewTitleList(titles))
}

func (h *CatalogHandler) GetTitle(ctx context.Context, c *app.RequestContext) {
	id, err := pathID(c, "title_id", "title")
	if err != nil {
		fail(c, err)
		return
	}
	title, err := h.catalog.GetTitle(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewTitleReadRes(title))
}

func (h *CatalogHandler) CreateTitle(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceTitle, authz.ActionCreate) {
		return
	}
	var req service.TitleInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	title, err := h.catalog.CreateTitle(ctx, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewTitleWriteRes(title))
}

func (h *CatalogHandler) UpdateTitle(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceTitle, authz.ActionUpdate) {
		return
	}
	id, err := pathID(c, "title_id", "title")
	if err != nil {
		fail(c, err)
		return
	}
	var req service.TitlePatch
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	title, err := h.catalog.UpdateTitle(ctx, id, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewTitleWriteRes(title))
}

func (h *CatalogHandler) DeleteTitle(ctx context.Context, c *app.RequestContext) {
	if !h.authorize(c, authz.ResourceTitle, authz.ActionDelete) {
		return
	}
	id, err := pathID(c, "title_id", "title")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.catalog.DeleteTitle(ctx, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
