package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/test/assert"
	"gorm.io/gorm"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/authz"
	catalogmodel "api-yamdb/pkg/core/catalog/model"
	"api-yamdb/pkg/core/review/repository/dao"
	"api-yamdb/pkg/core/review/repository/dao/impl"
	"api-yamdb/pkg/core/schema"
	usermodel "api-yamdb/pkg/core/user/model"
)

type reviewFixture struct {
	svc    *Service
	db     *gorm.DB
	title  catalogmodel.Title
	other  catalogmodel.Title
	author authz.Principal
	stray  authz.Principal
	mod    authz.Principal
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	db, err := config.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DBName: ":memory:", LogLevel: "silent"})
	assert.Nil(t, err)
	assert.Nil(t, schema.Migrate(db))

	enforcer, err := authz.NewEnforcer()
	assert.Nil(t, err)

	f := &reviewFixture{
		svc: NewReviewService(impl.NewGormReviewRepository(db), enforcer),
		db:  db,
	}

	principal := func(name string, role usermodel.Role) authz.Principal {
		u := usermodel.User{Username: name, Email: name + "@example.com", Role: role, Status: usermodel.StatusActive}
		assert.Nil(t, db.Create(&u).Error)
		return authz.Principal{UserID: u.ID, Username: u.Username, Role: string(u.Role)}
	}
	f.author = principal("alice", usermodel.RoleUser)
	f.stray = principal("bob", usermodel.RoleUser)
	f.mod = principal("mod", usermodel.RoleModerator)

	f.title = catalogmodel.Title{Name: "Alien", Year: 1979}
	assert.Nil(t, db.Create(&f.title).Error)
	f.other = catalogmodel.Title{Name: "Dune", Year: 1965}
	assert.Nil(t, db.Create(&f.other).Error)
	return f
}

func TestCreateReview(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	review, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "great", Score: 9})
	assert.Nil(t, err)
	assert.DeepEqual(t, "alice", review.AuthorName())
	assert.DeepEqual(t, f.title.ID, review.TitleID)
	assert.Assert(t, !review.PubDate.IsZero())

	_, err = f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "again", Score: 1})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{msgOneReviewPerTitle}, fe[apperrors.NonFieldErrors])

	// 另一部作品不受影响
	_, err = f.svc.CreateReview(ctx, f.author, f.other.ID, ReviewInput{Text: "fine", Score: 6})
	assert.Nil(t, err)
}

func TestCreateReviewErrors(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReview(ctx, authz.Anonymous, f.title.ID, ReviewInput{Text: "x", Score: 5})
	assert.DeepEqual(t, http.StatusUnauthorized, apperrors.StatusOf(err))

	_, err = f.svc.CreateReview(ctx, f.author, 999, ReviewInput{Text: "x", Score: 5})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))

	for _, score := range []int{0, 11, -1} {
		_, err = f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "x", Score: score})
		var fe apperrors.FieldErrors
		assert.Assert(t, errors.As(err, &fe))
		assert.DeepEqual(t, 1, len(fe["score"]))
	}
}

func TestUpdateReviewPermissions(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "great", Score: 9})
	assert.Nil(t, err)

	text := "changed"
	_, err = f.svc.UpdateReview(ctx, authz.Anonymous, f.title.ID, review.ID, ReviewPatch{Text: &text})
	assert.DeepEqual(t, http.StatusUnauthorized, apperrors.StatusOf(err))

	_, err = f.svc.UpdateReview(ctx, f.stray, f.title.ID, review.ID, ReviewPatch{Text: &text})
	assert.DeepEqual(t, http.StatusForbidden, apperrors.StatusOf(err))

	updated, err := f.svc.UpdateReview(ctx, f.author, f.title.ID, review.ID, ReviewPatch{Text: &text})
	assert.Nil(t, err)
	assert.DeepEqual(t, "changed", updated.Text)
	assert.DeepEqual(t, 9, updated.Score)

	score := 3
	updated, err = f.svc.UpdateReview(ctx, f.mod, f.title.ID, review.ID, ReviewPatch{Score: &score})
	assert.Nil(t, err)
	assert.DeepEqual(t, 3, updated.Score)
	assert.DeepEqual(t, "alice", updated.AuthorName())

	// 评价不属于路径里的作品
	_, err = f.svc.UpdateReview(ctx, f.author, f.other.ID, review.ID, ReviewPatch{Text: &text})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestDeleteReviewCascadesComments(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "great", Score: 9})
	assert.Nil(t, err)
	_, err = f.svc.CreateComment(ctx, f.stray, f.title.ID, review.ID, CommentInput{Text: "agree"})
	assert.Nil(t, err)

	assert.DeepEqual(t, http.StatusForbidden, apperrors.StatusOf(f.svc.DeleteReview(ctx, f.stray, f.title.ID, review.ID)))
	assert.Nil(t, f.svc.DeleteReview(ctx, f.mod, f.title.ID, review.ID))

	var count int64
	assert.Nil(t, f.db.Table("comments").Count(&count).Error)
	assert.DeepEqual(t, int64(0), count)
}

func TestDeleteTitleAndUserCascade(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "great", Score: 9})
	assert.Nil(t, err)
	_, err = f.svc.CreateReview(ctx, f.stray, f.other.ID, ReviewInput{Text: "meh", Score: 4})
	assert.Nil(t, err)
	_, err = f.svc.CreateComment(ctx, f.stray, f.title.ID, review.ID, CommentInput{Text: "agree"})
	assert.Nil(t, err)

	assert.Nil(t, f.db.Delete(&catalogmodel.Title{ID: f.title.ID}).Error)
	var count int64
	assert.Nil(t, f.db.Table("comments").Count(&count).Error)
	assert.DeepEqual(t, int64(0), count)

	assert.Nil(t, f.db.Delete(&usermodel.User{}, f.stray.UserID).Error)
	assert.Nil(t, f.db.Table("reviews").Count(&count).Error)
	assert.DeepEqual(t, int64(0), count)
}

func TestListReviewsScopedToTitle(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "a", Score: 9})
	assert.Nil(t, err)
	_, err = f.svc.CreateReview(ctx, f.stray, f.title.ID, ReviewInput{Text: "b", Score: 5})
	assert.Nil(t, err)
	other, err := f.svc.CreateReview(ctx, f.stray, f.other.ID, ReviewInput{Text: "c", Score: 5})
	assert.Nil(t, err)

	reviews, total, err := f.svc.ListReviews(ctx, f.title.ID, dao.Page{Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(2), total)
	assert.DeepEqual(t, "bob", reviews[1].AuthorName())

	_, _, err = f.svc.ListReviews(ctx, 999, dao.Page{Limit: 10})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))

	_, err = f.svc.GetReview(ctx, f.title.ID, other.ID)
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestCommentsScopedToPath(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()
	review, err := f.svc.CreateReview(ctx, f.author, f.title.ID, ReviewInput{Text: "a", Score: 9})
	assert.Nil(t, err)

	_, err = f.svc.CreateComment(ctx, f.stray, f.other.ID, review.ID, CommentInput{Text: "wrong title"})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))

	_, err = f.svc.CreateComment(ctx, authz.Anonymous, f.title.ID, review.ID, CommentInput{Text: "anon"})
	assert.DeepEqual(t, http.StatusUnauthorized, apperrors.StatusOf(err))

	_, err = f.svc.CreateComment(ctx, f.stray, f.title.ID, review.ID, CommentInput{})
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))

	comment, err := f.svc.CreateComment(ctx, f.stray, f.title.ID, review.ID, CommentInput{Text: "agree"})
	assert.Nil(t, err)
	assert.DeepEqual(t, "bob", comment.AuthorName())

	comments, total, err := f.svc.ListComments(ctx, f.title.ID, review.ID, dao.Page{Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(1), total)
	assert.DeepEqual(t, "agree", comments[0].Text)

	_, _, err = f.svc.ListComments(ctx, f.other.ID, review.ID, dao.Page{Limit: 10})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))

	got, err := f.svc.GetComment(ctx, f.title.ID, review.ID, comment.ID)
	assert.Nil(t, err)
	assert.DeepEqual(t, comment.ID, got.ID)

	text := "edited"
	_, err = f.svc.UpdateComment(ctx, f.author, f.title.ID, review.ID, comment.ID, CommentPatch{Text: &text})
	assert.DeepEqual(t, http.StatusForbidden, apperrors.StatusOf(err))
	updated, err := f.svc.UpdateComment(ctx, f.stray, f.title.ID, review.ID, comment.ID, CommentPatch{Text: &text})
	assert.Nil(t, err)
	assert.DeepEqual(t, "edited", updated.Text)

	assert.DeepEqual(t, http.StatusUnauthorized, apperrors.StatusOf(f.svc.DeleteComment(ctx, authz.Anonymous, f.title.ID, review.ID, comment.ID)))
	assert.Nil(t, f.svc.DeleteComment(ctx, f.stray, f.title.ID, review.ID, comment.ID))
	_, err = f.svc.GetComment(ctx, f.title.ID, review.ID, comment.ID)
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
}
