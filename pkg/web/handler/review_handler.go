package handler

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"api-yamdb/pkg/core/review/repository/dao"
	"api-yamdb/pkg/core/review/service"
	"api-yamdb/pkg/web/middleware"
	"api-yamdb/pkg/web/model"
)

// ReviewHandler 评价和评论，权限在 service 里按作者判定
type ReviewHandler struct {
	reviews   service.ReviewService
	paginator Paginator
}

func NewReviewHandler(reviews service.ReviewService, paginator Paginator) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, paginator: paginator}
}

// reviewPath 解析 /titles/:title_id/reviews/:review_id
func reviewPath(c *app.RequestContext, withReview bool) (titleID, reviewID int64, err error) {
	if titleID, err = pathID(c, "title_id", "title"); err != nil {
		return 0, 0, err
	}
	if withReview {
		if reviewID, err = pathID(c, "review_id", "review"); err != nil {
			return 0, 0, err
		}
	}
	return titleID, reviewID, nil
}

func (h *ReviewHandler) ListReviews(ctx context.Context, c *app.RequestContext) {
	titleID, _, err := reviewPath(c, false)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}
	reviews, total, err := h.reviews.ListReviews(ctx, titleID, dao.Page{Offset: page.Offset(), Limit: page.Size})
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewReviewList(reviews))
}

func (h *ReviewHandler) GetReview(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	review, err := h.reviews.GetReview(ctx, titleID, reviewID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewReviewRes(review))
}

func (h *ReviewHandler) CreateReview(ctx context.Context, c *app.RequestContext) {
	titleID, _, err := reviewPath(c, false)
	if err != nil {
		fail(c, err)
		return
	}
	var req service.ReviewInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	review, err := h.reviews.CreateReview(ctx, middleware.PrincipalFrom(c), titleID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewReviewRes(review))
}

func (h *ReviewHandler) UpdateReview(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	var req service.ReviewPatch
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	review, err := h.reviews.UpdateReview(ctx, middleware.PrincipalFrom(c), titleID, reviewID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewReviewRes(review))
}

func (h *ReviewHandler) DeleteReview(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.reviews.DeleteReview(ctx, middleware.PrincipalFrom(c), titleID, reviewID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReviewHandler) ListComments(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := h.paginator.parse(c)
	if err != nil {
		fail(c, err)
		return
	}
	comments, total, err := h.reviews.ListComments(ctx, titleID, reviewID, dao.Page{Offset: page.Offset(), Limit: page.Size})
	if err != nil {
		fail(c, err)
		return
	}
	h.paginator.respond(c, page, total, model.NewCommentList(comments))
}

func (h *ReviewHandler) GetComment(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	commentID, err := pathID(c, "comment_id", "comment")
	if err != nil {
		fail(c, err)
		return
	}
	comment, err := h.reviews.GetComment(ctx, titleID, reviewID, commentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewCommentRes(comment))
}

func (h *ReviewHandler) CreateComment(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	var req service.CommentInput
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	comment, err := h.reviews.CreateComment(ctx, middleware.PrincipalFrom(c), titleID, reviewID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, model.NewCommentRes(comment))
}

func (h *ReviewHandler) UpdateComment(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	commentID, err := pathID(c, "comment_id", "comment")
	if err != nil {
		fail(c, err)
		return
	}
	var req service.CommentPatch
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	comment, err := h.reviews.UpdateComment(ctx, middleware.PrincipalFrom(c), titleID, reviewID, commentID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewCommentRes(comment))
}

func (h *ReviewHandler) DeleteComment(ctx context.Context, c *app.RequestContext) {
	titleID, reviewID, err := reviewPath(c, true)
	if err != nil {
		fail(c, err)
		return
	}
	commentID, err := pathID(c, "comment_id", "comment")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.reviews.DeleteComment(ctx, middleware.PrincipalFrom(c), titleID, reviewID, commentID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
