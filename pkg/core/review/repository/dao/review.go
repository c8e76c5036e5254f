package dao

import (
	"context"

	"api-yamdb/pkg/core/review/model"
)

// Page 列表分页
type Page struct {
	Offset int
	Limit  int
}

// ReviewRepository 评价和评论都按父路径限定范围查询
type ReviewRepository interface {
	Transaction(ctx context.Context, fn func(repo ReviewRepository) error) error

	// TitleExists 作品不存在时返回 NotFound
	TitleExists(ctx context.Context, titleID int64) error

	ListReviews(ctx context.Context, titleID int64, page Page) ([]model.Review, int64, error)
	QueryReview(ctx context.Context, titleID, reviewID int64) (model.Review, error)
	HasReview(ctx context.Context, titleID, authorID int64) (bool, error)
	CreateReview(ctx context.Context, review *model.Review) error
	UpdateReview(ctx context.Context, review *model.Review) error
	DeleteReview(ctx context.Context, reviewID int64) error

	ListComments(ctx context.Context, reviewID int64, page Page) ([]model.Comment, int64, error)
	QueryComment(ctx context.Context, reviewID, commentID int64) (model.Comment, error)
	CreateComment(ctx context.Context, comment *model.Comment) error
	UpdateComment(ctx context.Context, comment *model.Comment) error
	DeleteComment(ctx context.Context, commentID int64) error
}
