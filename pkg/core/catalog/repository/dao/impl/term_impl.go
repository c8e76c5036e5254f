package impl

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/catalog/model"
	"api-yamdb/pkg/core/catalog/repository/dao"
)

// GormTermRepository 分类和体裁共用的实现，what 用于错误消息
type GormTermRepository[T model.Term] struct {
	db   *gorm.DB
	what string
}

func NewGormCategoryRepository(db *gorm.DB) *GormTermRepository[model.Category] {
	return &GormTermRepository[model.Category]{db: db, what: "category"}
}

func NewGormGenreRepository(db *gorm.DB) *GormTermRepository[model.Genre] {
	return &GormTermRepository[model.Genre]{db: db, what: "genre"}
}

var (
	_ dao.CategoryRepository = (*GormTermRepository[model.Category])(nil)
	_ dao.GenreRepository    = (*GormTermRepository[model.Genre])(nil)
)

func (r *GormTermRepository[T]) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T))
}

func (r *GormTermRepository[T]) List(ctx context.Context, filter dao.TermFilter) ([]T, int64, error) {
	query := func() *gorm.DB {
		q := r.conn(ctx)
		if s := strings.TrimSpace(filter.Search); s != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapGormError(err, r.what)
	}

	var terms []T
	if err := query().Order("id").Offset(filter.Offset).Limit(filter.Limit).Find(&terms).Error; err != nil {
		return nil, 0, apperrors.WrapGormError(err, r.what)
	}
	return terms, total, nil
}

func (r *GormTermRepository[T]) IsSlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.conn(ctx).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: failed to check slug", apperrors.WrapGormError(err, r.what))
	}
	return count > 0, nil
}

func (r *GormTermRepository[T]) Create(ctx context.Context, term *T) error {
	if err := r.db.WithContext(ctx).Create(term).Error; err != nil {
		return fmt.Errorf("%w: %s creation failed", apperrors.WrapGormError(err, r.what), r.what)
	}
	return nil
}

// DeleteBySlug 先加载记录再删除，删除钩子需要主键
func (r *GormTermRepository[T]) DeleteBySlug(ctx context.Context, slug string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var term T
		if err := tx.Where("slug = ?", slug).First(&term).Error; err != nil {
			return apperrors.WrapGormError(err, r.what)
		}
		if err := tx.Delete(&term).Error; err != nil {
			return apperrors.WrapGormError(err, r.what)
		}
		return nil
	})
}
