package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/web/model"
)

// fail 交给 ErrorRenderer 统一输出
func fail(c *app.RequestContext, err error) {
	_ = c.Error(apperrors.Public(err))
}

// bindJSON 空请求体按 {} 处理，字段缺失由校验报告
func bindJSON(c *app.RequestContext, dst interface{}) error {
	if len(c.Request.Body()) == 0 {
		return nil
	}
	if err := c.BindJSON(dst); err != nil {
		return apperrors.NonField(fmt.Sprintf("JSON parse error - %v", err))
	}
	return nil
}

// pathID 非数字的 ID 与不存在的 ID 一样返回 404
func pathID(c *app.RequestContext, name, what string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NotFound(what)
	}
	return id, nil
}

// Paginator 解析 ?page / ?page_size 并生成分页响应
type Paginator struct {
	cfg config.PaginationConfig
}

func NewPaginator(cfg config.PaginationConfig) Paginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return Paginator{cfg: cfg}
}

// pageRequest 一次列表请求的分页参数
type pageRequest struct {
	Page int
	Size int
}

func (r pageRequest) Offset() int { return (r.Page - 1) * r.Size }

func (p Paginator) parse(c *app.RequestContext) (pageRequest, error) {
	req := pageRequest{Page: 1, Size: p.cfg.PageSize}

	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Size = min(n, p.cfg.MaxPageSize)
		}
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("%w: invalid page", apperrors.ErrNotFound)
		}
		req.Page = n
	}
	return req, nil
}

// respond 页码超出范围时 404，第一页永远有效
func (p Paginator) respond(c *app.RequestContext, req pageRequest, total int64, results interface{}) {
	lastPage := int((total + int64(req.Size) - 1) / int64(req.Size))
	if req.Page > 1 && req.Page > lastPage {
		fail(c, fmt.Errorf("%w: invalid page", apperrors.ErrNotFound))
		return
	}

	res := model.PageRes{Count: total, Results: results}
	if req.Page < lastPage {
		res.Next = pageURL(c, req.Page+1)
	}
	if req.Page > 1 {
		res.Previous = pageURL(c, req.Page-1)
	}
	c.JSON(http.StatusOK, res)
}

func pageURL(c *app.RequestContext, page int) *string {
	var u protocol.URI
	c.URI().CopyTo(&u)
	args := u.QueryArgs()
	if page == 1 {
		args.Del("page")
	} else {
		args.Set("page", strconv.Itoa(page))
	}
	// 修改参数后需要重新生成查询串
	u.SetQueryStringBytes(args.QueryString())
	s := u.String()
	return &s
}
