package dao

import (
	"context"

	"api-yamdb/pkg/core/user/model"
)

// UserFilter 用户列表查询条件
type UserFilter struct {
	Search string // username 子串
	Offset int
	Limit  int
}

type UserRepository interface {
	// Transaction 在同一个事务里执行 fn，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(repo UserRepository) error) error

	QueryByID(ctx context.Context, id int64) (model.User, error)
	QueryByUsername(ctx context.Context, username string) (model.User, error)
	// QueryByUsernameOrEmail 返回用户名或邮箱命中的所有记录（最多两条）
	QueryByUsernameOrEmail(ctx context.Context, username, email string) ([]model.User, error)
	IsUsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	IsEmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	List(ctx context.Context, filter UserFilter) ([]model.User, int64, error)

	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateCode(ctx context.Context, userID int64, pendingCode, credentialHash string) error
	Activate(ctx context.Context, userID int64, consumeCode bool) error
	DeleteUser(ctx context.Context, id int64) error
}
