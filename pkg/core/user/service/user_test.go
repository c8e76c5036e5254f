package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/test/assert"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/mail"
	"api-yamdb/pkg/core/user/model"
	"api-yamdb/pkg/core/user/repository/dao"
	"api-yamdb/pkg/core/user/repository/dao/impl"
)

type fixture struct {
	svc    *Service
	repo   *impl.GormUserRepository
	mailer *mail.Recorder
	tokens *TokenIssuer
}

func newFixture(t *testing.T, singleUse bool) *fixture {
	t.Helper()

	db, err := config.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DBName: ":memory:", LogLevel: "silent"})
	assert.Nil(t, err)
	assert.Nil(t, model.AutoMigrate(db))

	cfg := config.Default()
	tokens, err := NewTokenIssuer(cfg.Middleware.JWT)
	assert.Nil(t, err)

	auth := cfg.Auth
	auth.BcryptCost = 4
	auth.SingleUseCodes = singleUse

	repo := impl.NewGormUserRepository(db)
	recorder := mail.NewRecorder()
	return &fixture{
		svc:    NewUserService(repo, recorder, tokens, auth, cfg.Mail),
		repo:   repo,
		mailer: recorder,
		tokens: tokens,
	}
}

func (f *fixture) lastCode(t *testing.T) string {
	t.Helper()
	msg, err := f.mailer.Last()
	assert.Nil(t, err)
	return msg.Body
}

func TestSignupCreatesPendingUserAndMailsCode(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	assert.DeepEqual(t, model.RoleUser, user.Role)
	assert.DeepEqual(t, model.StatusPending, user.Status)

	msg, err := f.mailer.Last()
	assert.Nil(t, err)
	assert.DeepEqual(t, "alice@example.com", msg.To)
	assert.DeepEqual(t, "Confirmation code", msg.Subject)
	assert.DeepEqual(t, 4, len(msg.Body))
	assert.DeepEqual(t, user.PendingCode, msg.Body)
}

func TestSignupIsIdempotentForSamePair(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	in := SignupInput{Username: "alice", Email: "alice@example.com"}

	first, err := f.svc.Signup(ctx, in)
	assert.Nil(t, err)
	second, err := f.svc.Signup(ctx, in)
	assert.Nil(t, err)

	assert.DeepEqual(t, first.ID, second.ID)
	sent := f.mailer.Sent()
	assert.DeepEqual(t, 2, len(sent))
	assert.DeepEqual(t, sent[0].Body, sent[1].Body)
}

func TestSignupConflicts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)

	_, err = f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "other@example.com"})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{msgUsernameTaken}, fe["username"])

	_, err = f.svc.Signup(ctx, SignupInput{Username: "bob", Email: "alice@example.com"})
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{msgEmailTaken}, fe["email"])

	// 用户名和邮箱分别被两个人占用时先报邮箱
	_, err = f.svc.Signup(ctx, SignupInput{Username: "bob", Email: "bob@example.com"})
	assert.Nil(t, err)
	_, err = f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "bob@example.com"})
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, 1, len(fe))
	assert.DeepEqual(t, []string{msgEmailTaken}, fe["email"])
}

func TestSignupRejectsReservedAndInvalid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, name := range []string{"me", "ME", "Me"} {
		_, err := f.svc.Signup(ctx, SignupInput{Username: name, Email: "x@example.com"})
		assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))
	}

	_, err := f.svc.Signup(ctx, SignupInput{Username: "ab", Email: "x@example.com"})
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = f.svc.Signup(ctx, SignupInput{Username: "carol", Email: "not-an-email"})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, 1, len(fe["email"]))

	assert.DeepEqual(t, 0, len(f.mailer.Sent()))
}

func TestSignupRollsBackWhenMailFails(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.mailer.Fail = errors.New("smtp down")

	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.DeepEqual(t, http.StatusServiceUnavailable, apperrors.StatusOf(err))

	_, err = f.repo.QueryByUsername(ctx, "alice")
	assert.Assert(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSignupIssuesCodeForAdminCreatedUser(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateUserInput{Username: "dave", Email: "dave@example.com", Role: "moderator"})
	assert.Nil(t, err)
	assert.DeepEqual(t, 0, len(f.mailer.Sent()))

	user, err := f.svc.Signup(ctx, SignupInput{Username: "dave", Email: "dave@example.com"})
	assert.Nil(t, err)
	assert.DeepEqual(t, model.RoleModerator, user.Role)
	assert.DeepEqual(t, user.PendingCode, f.lastCode(t))

	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "dave", ConfirmationCode: f.lastCode(t)})
	assert.Nil(t, err)
}

func TestExchangeToken(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	code := f.lastCode(t)

	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "nobody", ConfirmationCode: code})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))

	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: "0000"})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{msgInvalidCode}, fe["confirmation_code"])

	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice"})
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, 1, len(fe["confirmation_code"]))

	pair, err := f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: code})
	assert.Nil(t, err)
	assert.Assert(t, pair.Access != "")
	assert.Assert(t, pair.Refresh != "")

	user, err := f.repo.QueryByUsername(ctx, "alice")
	assert.Nil(t, err)
	assert.DeepEqual(t, model.StatusActive, user.Status)

	// 默认确认码可以重复使用
	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: code})
	assert.Nil(t, err)
}

func TestExchangeTokenSingleUse(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	code := f.lastCode(t)

	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: code})
	assert.Nil(t, err)
	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: code})
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))

	// 重新注册拿到新码
	_, err = f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	_, err = f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: f.lastCode(t)})
	assert.Nil(t, err)
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	pair, err := f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: f.lastCode(t)})
	assert.Nil(t, err)

	next, err := f.svc.RefreshToken(ctx, pair.Refresh)
	assert.Nil(t, err)
	assert.Assert(t, next.Access != "")

	_, err = f.svc.RefreshToken(ctx, pair.Access)
	assert.Assert(t, errors.Is(err, apperrors.ErrInvalidToken))

	_, err = f.svc.RefreshToken(ctx, "")
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))

	f.tokens.now = func() time.Time { return time.Now().Add(30 * 24 * time.Hour) }
	_, err = f.svc.RefreshToken(ctx, pair.Refresh)
	assert.Assert(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestRefreshTokenForDeletedUser(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	pair, err := f.svc.ExchangeToken(ctx, TokenInput{Username: "alice", ConfirmationCode: f.lastCode(t)})
	assert.Nil(t, err)

	assert.Nil(t, f.svc.Delete(ctx, "alice"))
	_, err = f.svc.RefreshToken(ctx, pair.Refresh)
	assert.Assert(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestUpdateProfileKeepsRole(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	user, err := f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)

	role, bio := "admin", "likes films"
	updated, err := f.svc.UpdateProfile(ctx, user.ID, ProfilePatch{Role: &role, Bio: &bio})
	assert.Nil(t, err)
	assert.DeepEqual(t, model.RoleUser, updated.Role)
	assert.DeepEqual(t, bio, updated.Bio)

	stored, err := f.repo.QueryByID(ctx, user.ID)
	assert.Nil(t, err)
	assert.DeepEqual(t, model.RoleUser, stored.Role)
	assert.DeepEqual(t, bio, stored.Bio)
	assert.DeepEqual(t, "alice@example.com", stored.Email)
}

func TestAdminUpdateChangesRoleAndChecksUniqueness(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	_, err = f.svc.Create(ctx, CreateUserInput{Username: "bob", Email: "bob@example.com"})
	assert.Nil(t, err)

	role := "moderator"
	updated, err := f.svc.Update(ctx, "bob", ProfilePatch{Role: &role})
	assert.Nil(t, err)
	assert.DeepEqual(t, model.RoleModerator, updated.Role)

	email := "alice@example.com"
	_, err = f.svc.Update(ctx, "bob", ProfilePatch{Email: &email})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{msgEmailTaken}, fe["email"])

	bad := "superuser"
	_, err = f.svc.Update(ctx, "bob", ProfilePatch{Role: &bad})
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))

	me := "mE"
	_, err = f.svc.Update(ctx, "bob", ProfilePatch{Username: &me})
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))
}

func TestCreateDuplicate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)

	_, err = f.svc.Create(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com"})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, 2, len(fe))
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	for _, name := range []string{"alice", "alina", "bob"} {
		_, err := f.svc.Create(ctx, CreateUserInput{Username: name, Email: name + "@example.com"})
		assert.Nil(t, err)
	}

	users, total, err := f.svc.List(ctx, dao.UserFilter{Search: "ALI", Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(2), total)
	assert.DeepEqual(t, "alice", users[0].Username)

	users, total, err = f.svc.List(ctx, dao.UserFilter{Offset: 2, Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(3), total)
	assert.DeepEqual(t, 1, len(users))

	assert.Nil(t, f.svc.Delete(ctx, "bob"))
	err = f.svc.Delete(ctx, "bob")
	assert.Assert(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	admin, code, err := f.svc.BootstrapAdmin(ctx, "root", "root@example.com")
	assert.Nil(t, err)
	assert.Assert(t, admin.IsSuperuser)
	assert.DeepEqual(t, model.RoleAdmin, admin.EffectiveRole())

	pair, err := f.svc.ExchangeToken(ctx, TokenInput{Username: "root", ConfirmationCode: code})
	assert.Nil(t, err)
	assert.Assert(t, pair.Access != "")

	// 已有普通用户被提升
	_, err = f.svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@example.com"})
	assert.Nil(t, err)
	promoted, code, err := f.svc.BootstrapAdmin(ctx, "alice", "alice@example.com")
	assert.Nil(t, err)
	assert.Assert(t, promoted.IsAdmin())
	stored, err := f.repo.QueryByUsername(ctx, "alice")
	assert.Nil(t, err)
	assert.Assert(t, stored.IsSuperuser)
	assert.DeepEqual(t, code, stored.PendingCode)

	_, _, err = f.svc.BootstrapAdmin(ctx, "alice", "other@example.com")
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))
	_, _, err = f.svc.BootstrapAdmin(ctx, "bob", "alice@example.com")
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))
	_, _, err = f.svc.BootstrapAdmin(ctx, "me", "me@example.com")
	assert.DeepEqual(t, http.StatusBadRequest, apperrors.StatusOf(err))
}
