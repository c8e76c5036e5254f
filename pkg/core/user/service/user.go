package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"golang.org/x/crypto/bcrypt"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/mail"
	"api-yamdb/pkg/common/validation"
	"api-yamdb/pkg/core/user/model"
	"api-yamdb/pkg/core/user/repository/dao"
)

const (
	msgEmailTaken    = "A user with this email already exists."
	msgUsernameTaken = "A user with this username already exists."
	msgInvalidCode   = "Invalid confirmation code."
)

type UserService interface {
	Signup(ctx context.Context, in SignupInput) (model.User, error)
	ExchangeToken(ctx context.Context, in TokenInput) (TokenPair, error)
	RefreshToken(ctx context.Context, refresh string) (TokenPair, error)
	Authenticate(ctx context.Context, userID int64) (model.User, error)

	UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (model.User, error)

	List(ctx context.Context, filter dao.UserFilter) ([]model.User, int64, error)
	Get(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, in CreateUserInput) (model.User, error)
	Update(ctx context.Context, username string, patch ProfilePatch) (model.User, error)
	Delete(ctx context.Context, username string) error
}

type (
	SignupInput struct {
		Username string `json:"username" validate:"required,max=150,username,notme"`
		Email    string `json:"email" validate:"required,email,max=254"`
	}

	TokenInput struct {
		Username         string `json:"username" validate:"required,max=150"`
		ConfirmationCode string `json:"confirmation_code" validate:"required,max=50"`
	}

	CreateUserInput struct {
		Username  string `json:"username" validate:"required,max=150,username,notme"`
		Email     string `json:"email" validate:"required,email,max=254"`
		FirstName string `json:"first_name" validate:"max=150"`
		LastName  string `json:"last_name" validate:"max=150"`
		Bio       string `json:"bio"`
		Role      string `json:"role" validate:"omitempty,oneof=user moderator admin"`
	}

	// ProfilePatch 部分更新，nil 字段保持不变
	ProfilePatch struct {
		Username  *string `json:"username" validate:"omitnil,max=150,username,notme"`
		Email     *string `json:"email" validate:"omitnil,email,max=254"`
		FirstName *string `json:"first_name" validate:"omitnil,max=150"`
		LastName  *string `json:"last_name" validate:"omitnil,max=150"`
		Bio       *string `json:"bio"`
		Role      *string `json:"role" validate:"omitnil,oneof=user moderator admin"`
	}
)

type Service struct {
	repo   dao.UserRepository
	mailer mail.Mailer
	tokens *TokenIssuer
	auth   config.AuthConfig
	mail   config.MailConfig
}

func NewUserService(repo dao.UserRepository, mailer mail.Mailer, tokens *TokenIssuer, auth config.AuthConfig, mailCfg config.MailConfig) *Service {
	return &Service{repo: repo, mailer: mailer, tokens: tokens, auth: auth, mail: mailCfg}
}

var _ UserService = (*Service)(nil)

// Signup 注册或重发确认码。
// 用户名和邮箱都匹配同一条记录时复用该记录和它的确认码；
// 只有一边被占用时返回冲突；否则创建新用户。邮件在事务内发送，发送失败整体回滚。
func (s *Service) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return model.User{}, err
	}

	user, err := s.signupOnce(ctx, in)
	if apperrors.IsDuplicateError(err) {
		// 并发注册撞上唯一索引：重新走一遍，这次能看到已提交的记录
		hlog.CtxInfof(ctx, "[SIGNUP] concurrent insert for %s, retrying", in.Username)
		user, err = s.signupOnce(ctx, in)
	}
	return user, err
}

func (s *Service) signupOnce(ctx context.Context, in SignupInput) (model.User, error) {
	var out model.User
	err := s.repo.Transaction(ctx, func(repo dao.UserRepository) error {
		matches, err := repo.QueryByUsernameOrEmail(ctx, in.Username, in.Email)
		if err != nil {
			return err
		}

		var user *model.User
		for i := range matches {
			if matches[i].Username == in.Username && matches[i].Email == in.Email {
				user = &matches[i]
				break
			}
		}

		if user == nil {
			if conflict := signupConflict(matches, in); conflict != nil {
				return conflict
			}
			code, hash, err := s.newCode()
			if err != nil {
				return err
			}
			user = &model.User{
				Username:       in.Username,
				Email:          in.Email,
				Role:           model.RoleUser,
				Status:         model.StatusPending,
				PendingCode:    code,
				CredentialHash: hash,
			}
			if err := repo.CreateUser(ctx, user); err != nil {
				return err
			}
		} else if user.PendingCode == "" {
			// 管理员创建的账号或确认码已被消费
			code, hash, err := s.newCode()
			if err != nil {
				return err
			}
			if err := repo.UpdateCode(ctx, user.ID, code, hash); err != nil {
				return err
			}
			user.PendingCode, user.CredentialHash = code, hash
		}

		if err := s.sendCode(ctx, user); err != nil {
			return err
		}
		out = *user
		return nil
	})
	return out, err
}

// signupConflict 邮箱优先于用户名
func signupConflict(matches []model.User, in SignupInput) error {
	for _, m := range matches {
		if m.Email == in.Email {
			return apperrors.Field("email", msgEmailTaken)
		}
	}
	for _, m := range matches {
		if m.Username == in.Username {
			return apperrors.Field("username", msgUsernameTaken)
		}
	}
	return nil
}

func (s *Service) sendCode(ctx context.Context, user *model.User) error {
	return s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: s.mail.Subject,
		Body:    user.PendingCode,
	})
}

// newCode 生成 [CodeMin, CodeMax] 区间内的数字确认码及其哈希
func (s *Service) newCode() (string, string, error) {
	lo, hi := s.auth.CodeMin, s.auth.CodeMax
	if hi < lo {
		return "", "", fmt.Errorf("invalid code range [%d, %d]", lo, hi)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%d", int64(lo)+n.Int64())

	cost := s.auth.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", "", fmt.Errorf("hash code: %w", err)
	}
	return code, string(hash), nil
}

// ExchangeToken 用确认码换取令牌。未知用户名 404，确认码错误 400。
func (s *Service) ExchangeToken(ctx context.Context, in TokenInput) (TokenPair, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return TokenPair{}, err
	}

	user, err := s.repo.QueryByUsername(ctx, in.Username)
	if err != nil {
		return TokenPair{}, err
	}

	if user.CredentialHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.CredentialHash), []byte(in.ConfirmationCode)) != nil {
		return TokenPair{}, apperrors.Field("confirmation_code", msgInvalidCode)
	}

	if user.Status != model.StatusActive || s.auth.SingleUseCodes {
		if err := s.repo.Activate(ctx, user.ID, s.auth.SingleUseCodes); err != nil {
			return TokenPair{}, err
		}
	}

	return s.tokens.Issue(&user)
}

// RefreshToken 用刷新令牌换新的访问令牌，用户必须仍然存在
func (s *Service) RefreshToken(ctx context.Context, refresh string) (TokenPair, error) {
	if refresh == "" {
		return TokenPair{}, apperrors.Field("refresh", "This field is required.")
	}
	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.Authenticate(ctx, userID)
	if err != nil {
		return TokenPair{}, err
	}
	return s.tokens.Issue(&user)
}

// Authenticate 按令牌里的用户 ID 加载用户；用户已删除时令牌失效
func (s *Service) Authenticate(ctx context.Context, userID int64) (model.User, error) {
	user, err := s.repo.QueryByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return model.User{}, fmt.Errorf("%w: user no longer exists", apperrors.ErrInvalidToken)
	}
	return user, err
}

// UpdateProfile 用户修改自己的资料，role 始终保留原值
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (model.User, error) {
	patch.Role = nil
	user, err := s.repo.QueryByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return s.applyPatch(ctx, user, patch)
}

func (s *Service) List(ctx context.Context, filter dao.UserFilter) ([]model.User, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, username string) (model.User, error) {
	return s.repo.QueryByUsername(ctx, username)
}

// Create 管理员直接创建用户，不发确认码；用户之后用同样的用户名和邮箱注册即可拿到确认码
func (s *Service) Create(ctx context.Context, in CreateUserInput) (model.User, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return model.User{}, err
	}

	role := model.Role(in.Role)
	if role == "" {
		role = model.RoleUser
	}
	user := model.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Bio:       in.Bio,
		Role:      role,
		Status:    model.StatusPending,
	}

	err := s.repo.Transaction(ctx, func(repo dao.UserRepository) error {
		if err := checkUnique(ctx, repo, user.Username, user.Email, 0); err != nil {
			return err
		}
		return repo.CreateUser(ctx, &user)
	})
	if err != nil {
		return model.User{}, uniqueViolation(err)
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, username string, patch ProfilePatch) (model.User, error) {
	user, err := s.repo.QueryByUsername(ctx, username)
	if err != nil {
		return model.User{}, err
	}
	return s.applyPatch(ctx, user, patch)
}

func (s *Service) Delete(ctx context.Context, username string) error {
	user, err := s.repo.QueryByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, user.ID)
}

func (s *Service) applyPatch(ctx context.Context, user model.User, patch ProfilePatch) (model.User, error) {
	if err := validation.ValidateStruct(&patch); err != nil {
		return model.User{}, err
	}

	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Role != nil {
		user.Role = model.Role(*patch.Role)
	}

	err := s.repo.Transaction(ctx, func(repo dao.UserRepository) error {
		if err := checkUnique(ctx, repo, user.Username, user.Email, user.ID); err != nil {
			return err
		}
		return repo.UpdateUser(ctx, &user)
	})
	if err != nil {
		return model.User{}, uniqueViolation(err)
	}
	return user, nil
}

func checkUnique(ctx context.Context, repo dao.UserRepository, username, email string, excludeID int64) error {
	fe := apperrors.FieldErrors{}
	taken, err := repo.IsUsernameExists(ctx, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		fe.Add("username", msgUsernameTaken)
	}
	taken, err = repo.IsEmailExists(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		fe.Add("email", msgEmailTaken)
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// uniqueViolation 检查之后仍撞上唯一索引（并发写入）时给出字段错误
func uniqueViolation(err error) error {
	var fe apperrors.FieldErrors
	if errors.As(err, &fe) || !apperrors.IsDuplicateError(err) {
		return err
	}
	return apperrors.NonField("A user with this username or email already exists.")
}

// BootstrapAdmin 创建超级用户或把已有用户提升为超级用户，返回新生成的确认码。
// 已有用户的邮箱必须一致。
func (s *Service) BootstrapAdmin(ctx context.Context, username, email string) (model.User, string, error) {
	in := SignupInput{Username: username, Email: email}
	if err := validation.ValidateStruct(&in); err != nil {
		return model.User{}, "", err
	}
	code, hash, err := s.newCode()
	if err != nil {
		return model.User{}, "", err
	}

	var out model.User
	err = s.repo.Transaction(ctx, func(repo dao.UserRepository) error {
		user, err := repo.QueryByUsername(ctx, username)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			taken, err := repo.IsEmailExists(ctx, email, 0)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.Field("email", msgEmailTaken)
			}
			user = model.User{
				Username:       username,
				Email:          email,
				Role:           model.RoleAdmin,
				IsSuperuser:    true,
				Status:         model.StatusPending,
				PendingCode:    code,
				CredentialHash: hash,
			}
			if err := repo.CreateUser(ctx, &user); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if user.Email != email {
				return apperrors.Field("email", "Email does not match the existing user.")
			}
			user.Role, user.IsSuperuser = model.RoleAdmin, true
			if err := repo.UpdateUser(ctx, &user); err != nil {
				return err
			}
			if err := repo.UpdateCode(ctx, user.ID, code, hash); err != nil {
				return err
			}
			user.PendingCode, user.CredentialHash = code, hash
		}
		out = user
		return nil
	})
	if err != nil {
		return model.User{}, "", err
	}
	hlog.CtxInfof(ctx, "[ADMIN] superuser %s ready", out.Username)
	return out, code, nil
}
