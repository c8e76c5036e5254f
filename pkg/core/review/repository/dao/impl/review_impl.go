package impl

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	apperrors "api-yamdb/pkg/common/errors"
	catalogmodel "api-yamdb/pkg/core/catalog/model"
	"api-yamdb/pkg/core/review/model"
	"api-yamdb/pkg/core/review/repository/dao"
)

type GormReviewRepository struct {
	db *gorm.DB
}

func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

var _ dao.ReviewRepository = (*GormReviewRepository)(nil)

func (r *GormReviewRepository) Transaction(ctx context.Context, fn func(repo dao.ReviewRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormReviewRepository{db: tx})
	})
}

func (r *GormReviewRepository) TitleExists(ctx context.Context, titleID int64) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&catalogmodel.Title{}).Where("id = ?", titleID).Count(&count).Error
	if err != nil {
		return apperrors.WrapGormError(err, "title")
	}
	if count == 0 {
		return apperrors.NotFound("title")
	}
	return nil
}

func (r *GormReviewRepository) ListReviews(ctx context.Context, titleID int64, page dao.Page) ([]model.Review, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Review{}).Where("title_id = ?", titleID).Count(&total).Error
	if err != nil {
		return nil, 0, apperrors.WrapGormError(err, "review")
	}

	var reviews []model.Review
	err = r.db.WithContext(ctx).
		Preload("Author").
		Where("title_id = ?", titleID).
		Order("id").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, apperrors.WrapGormError(err, "review")
	}
	return reviews, total, nil
}

func (r *GormReviewRepository) QueryReview(ctx context.Context, titleID, reviewID int64) (model.Review, error) {
	var review model.Review
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND title_id = ?", reviewID, titleID).
		First(&review).Error
	if err != nil {
		return model.Review{}, apperrors.WrapGormError(err, "review")
	}
	return review, nil
}

func (r *GormReviewRepository) HasReview(ctx context.Context, titleID, authorID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("title_id = ? AND author_id = ?", titleID, authorID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to check review", apperrors.WrapGormError(err, "review"))
	}
	return count > 0, nil
}

func (r *GormReviewRepository) CreateReview(ctx context.Context, review *model.Review) error {
	if err := r.db.WithContext(ctx).Omit("Title", "Author").Create(review).Error; err != nil {
		return fmt.Errorf("%w: review creation failed", apperrors.WrapGormError(err, "review"))
	}
	return nil
}

func (r *GormReviewRepository) UpdateReview(ctx context.Context, review *model.Review) error {
	err := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("id = ?", review.ID).
		Updates(map[string]interface{}{"text": review.Text, "score": review.Score}).Error
	if err != nil {
		return fmt.Errorf("%w: review update failed", apperrors.WrapGormError(err, "review"))
	}
	return nil
}

func (r *GormReviewRepository) DeleteReview(ctx context.Context, reviewID int64) error {
	result := r.db.WithContext(ctx).Delete(&model.Review{}, reviewID)
	if result.Error != nil {
		return apperrors.WrapGormError(result.Error, "review")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("review")
	}
	return nil
}

func (r *GormReviewRepository) ListComments(ctx context.Context, reviewID int64, page dao.Page) ([]model.Comment, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("review_id = ?", reviewID).Count(&total).Error
	if err != nil {
		return nil, 0, apperrors.WrapGormError(err, "comment")
	}

	var comments []model.Comment
	err = r.db.WithContext(ctx).
		Preload("Author").
		Where("review_id = ?", reviewID).
		Order("id").
		Offset(page.Offset).
		Limit(page.Limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, apperrors.WrapGormError(err, "comment")
	}
	return comments, total, nil
}

func (r *GormReviewRepository) QueryComment(ctx context.Context, reviewID, commentID int64) (model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND review_id = ?", commentID, reviewID).
		First(&comment).Error
	if err != nil {
		return model.Comment{}, apperrors.WrapGormError(err, "comment")
	}
	return comment, nil
}

func (r *GormReviewRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Omit("Review", "Author").Create(comment).Error; err != nil {
		return fmt.Errorf("%w: comment creation failed", apperrors.WrapGormError(err, "comment"))
	}
	return nil
}

func (r *GormReviewRepository) UpdateComment(ctx context.Context, comment *model.Comment) error {
	err := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", comment.ID).
		Update("text", comment.Text).Error
	if err != nil {
		return fmt.Errorf("%w: comment update failed", apperrors.WrapGormError(err, "comment"))
	}
	return nil
}

func (r *GormReviewRepository) DeleteComment(ctx context.Context, commentID int64) error {
	result := r.db.WithContext(ctx).Delete(&model.Comment{}, commentID)
	if result.Error != nil {
		return apperrors.WrapGormError(result.Error, "comment")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("comment")
	}
	return nil
}
