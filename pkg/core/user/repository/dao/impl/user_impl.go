package impl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/user/model"
	"api-yamdb/pkg/core/user/repository/dao"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

var _ dao.UserRepository = (*GormUserRepository)(nil)

func (r *GormUserRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.User{})
}

// Transaction 事务内的仓储共享同一个 tx
func (r *GormUserRepository) Transaction(ctx context.Context, fn func(repo dao.UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormUserRepository{db: tx})
	})
}

func (r *GormUserRepository) QueryByID(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	err := r.conn(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return model.User{}, apperrors.WrapGormError(err, "user")
	}
	return user, nil
}

func (r *GormUserRepository) QueryByUsername(ctx context.Context, username string) (model.User, error) {
	var user model.User
	err := r.conn(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return model.User{}, apperrors.WrapGormError(err, "user")
	}
	return user, nil
}

func (r *GormUserRepository) QueryByUsernameOrEmail(ctx context.Context, username, email string) ([]model.User, error) {
	var users []model.User
	err := r.conn(ctx).
		Where("username = ? OR email = ?", username, email).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("%w: signup lookup failed", apperrors.WrapGormError(err, "user"))
	}
	return users, nil
}

// Check username existence, excludeID 为 0 时不排除
func (r *GormUserRepository) IsUsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Where("username = ? AND id <> ?", username, excludeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to check username", apperrors.WrapGormError(err, "user"))
	}
	return count > 0, nil
}

func (r *GormUserRepository) IsEmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to check email", apperrors.WrapGormError(err, "user"))
	}
	return count > 0, nil
}

func (r *GormUserRepository) List(ctx context.Context, filter dao.UserFilter) ([]model.User, int64, error) {
	// 每次构造新的查询链，Count 和 Find 不共享 Statement
	query := func() *gorm.DB {
		q := r.conn(ctx)
		if s := strings.TrimSpace(filter.Search); s != "" {
			q = q.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapGormError(err, "user")
	}

	var users []model.User
	if err := query().Order("id").Offset(filter.Offset).Limit(filter.Limit).Find(&users).Error; err != nil {
		return nil, 0, apperrors.WrapGormError(err, "user")
	}
	return users, total, nil
}

func (r *GormUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("%w: user creation failed", apperrors.WrapGormError(err, "user"))
	}
	return nil
}

// UpdateUser 写回资料字段，零值也会写入
func (r *GormUserRepository) UpdateUser(ctx context.Context, user *model.User) error {
	result := r.conn(ctx).
		Where("id = ?", user.ID).
		Select("username", "email", "role", "bio", "first_name", "last_name", "is_superuser", "updated_at").
		Updates(map[string]interface{}{
			"username":     user.Username,
			"email":        user.Email,
			"role":         user.Role,
			"bio":          user.Bio,
			"first_name":   user.FirstName,
			"last_name":    user.LastName,
			"is_superuser": user.IsSuperuser,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("%w: user update failed", apperrors.WrapGormError(result.Error, "user"))
	}
	return nil
}

func (r *GormUserRepository) UpdateCode(ctx context.Context, userID int64, pendingCode, credentialHash string) error {
	result := r.conn(ctx).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"pending_code":    pendingCode,
			"credential_hash": credentialHash,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("%w: code update failed", apperrors.WrapGormError(result.Error, "user"))
	}
	return nil
}

// Activate 标记为已验证；consumeCode 时同时作废确认码
func (r *GormUserRepository) Activate(ctx context.Context, userID int64, consumeCode bool) error {
	updates := map[string]interface{}{
		"status":     model.StatusActive,
		"updated_at": time.Now(),
	}
	if consumeCode {
		updates["pending_code"] = ""
		updates["credential_hash"] = ""
	}
	result := r.conn(ctx).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("%w: activation failed", apperrors.WrapGormError(result.Error, "user"))
	}
	return nil
}

func (r *GormUserRepository) DeleteUser(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if result.Error != nil {
		return apperrors.WrapGormError(result.Error, "user")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("user")
	}
	return nil
}
