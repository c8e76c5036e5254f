package service

import (
	"context"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/validation"
	"api-yamdb/pkg/core/authz"
	"api-yamdb/pkg/core/review/model"
	"api-yamdb/pkg/core/review/repository/dao"
)

const msgOneReviewPerTitle = "You can leave only one review per title."

type ReviewService interface {
	ListReviews(ctx context.Context, titleID int64, page dao.Page) ([]model.Review, int64, error)
	GetReview(ctx context.Context, titleID, reviewID int64) (model.Review, error)
	CreateReview(ctx context.Context, p authz.Principal, titleID int64, in ReviewInput) (model.Review, error)
	UpdateReview(ctx context.Context, p authz.Principal, titleID, reviewID int64, patch ReviewPatch) (model.Review, error)
	DeleteReview(ctx context.Context, p authz.Principal, titleID, reviewID int64) error

	ListComments(ctx context.Context, titleID, reviewID int64, page dao.Page) ([]model.Comment, int64, error)
	GetComment(ctx context.Context, titleID, reviewID, commentID int64) (model.Comment, error)
	CreateComment(ctx context.Context, p authz.Principal, titleID, reviewID int64, in CommentInput) (model.Comment, error)
	UpdateComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID int64, patch CommentPatch) (model.Comment, error)
	DeleteComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID int64) error
}

type (
	ReviewInput struct {
		Text  string `json:"text" validate:"required"`
		Score int    `json:"score" validate:"required,min=1,max=10"`
	}

	ReviewPatch struct {
		Text  *string `json:"text" validate:"omitnil,min=1"`
		Score *int    `json:"score" validate:"omitnil,min=1,max=10"`
	}

	CommentInput struct {
		Text string `json:"text" validate:"required"`
	}

	CommentPatch struct {
		Text *string `json:"text" validate:"omitnil,min=1"`
	}
)

type Service struct {
	repo     dao.ReviewRepository
	enforcer *authz.Enforcer
}

func NewReviewService(repo dao.ReviewRepository, enforcer *authz.Enforcer) *Service {
	return &Service{repo: repo, enforcer: enforcer}
}

var _ ReviewService = (*Service)(nil)

func (s *Service) ListReviews(ctx context.Context, titleID int64, page dao.Page) ([]model.Review, int64, error) {
	if err := s.repo.TitleExists(ctx, titleID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListReviews(ctx, titleID, page)
}

func (s *Service) GetReview(ctx context.Context, titleID, reviewID int64) (model.Review, error) {
	return s.repo.QueryReview(ctx, titleID, reviewID)
}

// CreateReview 同一作者对同一作品的第二条评价返回 non_field_errors，唯一索引兜底并发写入
func (s *Service) CreateReview(ctx context.Context, p authz.Principal, titleID int64, in ReviewInput) (model.Review, error) {
	if err := s.enforcer.Authorize(p, authz.ResourceReview, authz.ActionCreate, 0); err != nil {
		return model.Review{}, err
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return model.Review{}, err
	}

	var out model.Review
	err := s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		if err := repo.TitleExists(ctx, titleID); err != nil {
			return err
		}
		exists, err := repo.HasReview(ctx, titleID, p.UserID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NonField(msgOneReviewPerTitle)
		}

		review := model.Review{TitleID: titleID, AuthorID: p.UserID, Text: in.Text, Score: in.Score}
		if err := repo.CreateReview(ctx, &review); err != nil {
			return err
		}
		out, err = repo.QueryReview(ctx, titleID, review.ID)
		return err
	})
	if apperrors.IsDuplicateError(err) {
		return model.Review{}, apperrors.NonField(msgOneReviewPerTitle)
	}
	return out, err
}

func (s *Service) UpdateReview(ctx context.Context, p authz.Principal, titleID, reviewID int64, patch ReviewPatch) (model.Review, error) {
	if !p.IsAuthenticated() {
		return model.Review{}, apperrors.ErrUnauthenticated
	}
	if err := validation.ValidateStruct(&patch); err != nil {
		return model.Review{}, err
	}

	var out model.Review
	err := s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		review, err := repo.QueryReview(ctx, titleID, reviewID)
		if err != nil {
			return err
		}
		if err := s.enforcer.Authorize(p, authz.ResourceReview, authz.ActionUpdate, review.AuthorID); err != nil {
			return err
		}

		if patch.Text != nil {
			review.Text = *patch.Text
		}
		if patch.Score != nil {
			review.Score = *patch.Score
		}
		if err := repo.UpdateReview(ctx, &review); err != nil {
			return err
		}
		out = review
		return nil
	})
	return out, err
}

func (s *Service) DeleteReview(ctx context.Context, p authz.Principal, titleID, reviewID int64) error {
	if !p.IsAuthenticated() {
		return apperrors.ErrUnauthenticated
	}
	return s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		review, err := repo.QueryReview(ctx, titleID, reviewID)
		if err != nil {
			return err
		}
		if err := s.enforcer.Authorize(p, authz.ResourceReview, authz.ActionDelete, review.AuthorID); err != nil {
			return err
		}
		return repo.DeleteReview(ctx, review.ID)
	})
}

func (s *Service) ListComments(ctx context.Context, titleID, reviewID int64, page dao.Page) ([]model.Comment, int64, error) {
	if _, err := s.repo.QueryReview(ctx, titleID, reviewID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListComments(ctx, reviewID, page)
}

func (s *Service) GetComment(ctx context.Context, titleID, reviewID, commentID int64) (model.Comment, error) {
	if _, err := s.repo.QueryReview(ctx, titleID, reviewID); err != nil {
		return model.Comment{}, err
	}
	return s.repo.QueryComment(ctx, reviewID, commentID)
}

func (s *Service) CreateComment(ctx context.Context, p authz.Principal, titleID, reviewID int64, in CommentInput) (model.Comment, error) {
	if err := s.enforcer.Authorize(p, authz.ResourceComment, authz.ActionCreate, 0); err != nil {
		return model.Comment{}, err
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return model.Comment{}, err
	}

	var out model.Comment
	err := s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		// 评价必须属于路径里的作品
		if _, err := repo.QueryReview(ctx, titleID, reviewID); err != nil {
			return err
		}
		comment := model.Comment{ReviewID: reviewID, AuthorID: p.UserID, Text: in.Text}
		if err := repo.CreateComment(ctx, &comment); err != nil {
			return err
		}
		var err error
		out, err = repo.QueryComment(ctx, reviewID, comment.ID)
		return err
	})
	return out, err
}

func (s *Service) UpdateComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID int64, patch CommentPatch) (model.Comment, error) {
	if !p.IsAuthenticated() {
		return model.Comment{}, apperrors.ErrUnauthenticated
	}
	if err := validation.ValidateStruct(&patch); err != nil {
		return model.Comment{}, err
	}

	var out model.Comment
	err := s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		comment, err := scopedComment(ctx, repo, titleID, reviewID, commentID)
		if err != nil {
			return err
		}
		if err := s.enforcer.Authorize(p, authz.ResourceComment, authz.ActionUpdate, comment.AuthorID); err != nil {
			return err
		}
		if patch.Text != nil {
			comment.Text = *patch.Text
		}
		if err := repo.UpdateComment(ctx, &comment); err != nil {
			return err
		}
		out = comment
		return nil
	})
	return out, err
}

func (s *Service) DeleteComment(ctx context.Context, p authz.Principal, titleID, reviewID, commentID int64) error {
	if !p.IsAuthenticated() {
		return apperrors.ErrUnauthenticated
	}
	return s.repo.Transaction(ctx, func(repo dao.ReviewRepository) error {
		comment, err := scopedComment(ctx, repo, titleID, reviewID, commentID)
		if err != nil {
			return err
		}
		if err := s.enforcer.Authorize(p, authz.ResourceComment, authz.ActionDelete, comment.AuthorID); err != nil {
			return err
		}
		return repo.DeleteComment(ctx, comment.ID)
	})
}

func scopedComment(ctx context.Context, repo dao.ReviewRepository, titleID, reviewID, commentID int64) (model.Comment, error) {
	if _, err := repo.QueryReview(ctx, titleID, reviewID); err != nil {
		return model.Comment{}, err
	}
	return repo.QueryComment(ctx, reviewID, commentID)
}
