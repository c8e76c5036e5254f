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

// 评分在数据库里求平均，取整在 model.Title.Rating 里做，各方言的整数转换规则不同
const titleColumns = "titles.*, (SELECT AVG(reviews.score) FROM reviews WHERE reviews.title_id = titles.id) AS avg_score"

type GormTitleRepository struct {
	db *gorm.DB
}

func NewGormTitleRepository(db *gorm.DB) *GormTitleRepository {
	return &GormTitleRepository{db: db}
}

var _ dao.TitleRepository = (*GormTitleRepository)(nil)

func (r *GormTitleRepository) Transaction(ctx context.Context, fn func(repo dao.TitleRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormTitleRepository{db: tx})
	})
}

func (r *GormTitleRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Title{}).
		Select(titleColumns).
		Preload("Category").
		Preload("Genres", func(db *gorm.DB) *gorm.DB { return db.Order("genres.id") })
}

func (r *GormTitleRepository) QueryByID(ctx context.Context, id int64) (model.Title, error) {
	var title model.Title
	if err := r.withRelations(ctx).Where("titles.id = ?", id).First(&title).Error; err != nil {
		return model.Title{}, apperrors.WrapGormError(err, "title")
	}
	return title, nil
}

func (r *GormTitleRepository) List(ctx context.Context, filter dao.TitleFilter) ([]model.Title, int64, error) {
	where := func(q *gorm.DB) *gorm.DB {
		if filter.Category != "" {
			q = q.Where("titles.category_id IN (SELECT id FROM categories WHERE slug = ?)", filter.Category)
		}
		if filter.Genre != "" {
			q = q.Where("titles.id IN (SELECT tg.title_id FROM title_genres tg JOIN genres g ON g.id = tg.genre_id WHERE g.slug = ?)", filter.Genre)
		}
		if s := strings.TrimSpace(filter.Name); s != "" {
			q = q.Where("LOWER(titles.name) LIKE ?", "%"+strings.ToLower(s)+"%")
		}
		if filter.Year != 0 {
			q = q.Where("titles.year = ?", filter.Year)
		}
		return q
	}

	var total int64
	if err := where(r.db.WithContext(ctx).Model(&model.Title{})).Count(&total).Error; err != nil {
		return nil, 0, apperrors.WrapGormError(err, "title")
	}

	var titles []model.Title
	err := where(r.withRelations(ctx)).
		Order("titles.id").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&titles).Error
	if err != nil {
		return nil, 0, apperrors.WrapGormError(err, "title")
	}
	return titles, total, nil
}

// Create 只写关联关系，不回写分类和体裁本身
func (r *GormTitleRepository) Create(ctx context.Context, title *model.Title) error {
	err := r.db.WithContext(ctx).
		Omit("Category", "Genres.*").
		Create(title).Error
	if err != nil {
		return fmt.Errorf("%w: title creation failed", apperrors.WrapGormError(err, "title"))
	}
	return nil
}

func (r *GormTitleRepository) Update(ctx context.Context, title *model.Title, genres []model.Genre) error {
	err := r.db.WithContext(ctx).
		Model(&model.Title{}).
		Where("id = ?", title.ID).
		Select("name", "year", "description", "category_id").
		Updates(map[string]interface{}{
			"name":        title.Name,
			"year":        title.Year,
			"description": title.Description,
			"category_id": title.CategoryID,
		}).Error
	if err != nil {
		return fmt.Errorf("%w: title update failed", apperrors.WrapGormError(err, "title"))
	}

	if genres == nil {
		return nil
	}
	assoc := r.db.WithContext(ctx).
		Model(&model.Title{ID: title.ID}).
		Omit("Genres.*").
		Association("Genres")
	if len(genres) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(genres)
	}
	if err != nil {
		return fmt.Errorf("%w: title genres update failed", apperrors.WrapGormError(err, "title"))
	}
	return nil
}

func (r *GormTitleRepository) Delete(ctx context.Context, id int64) error {
	title := model.Title{ID: id}
	result := r.db.WithContext(ctx).Delete(&title)
	if result.Error != nil {
		return apperrors.WrapGormError(result.Error, "title")
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("title")
	}
	return nil
}

func (r *GormTitleRepository) CategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return model.Category{}, apperrors.WrapGormError(err, "category")
	}
	return category, nil
}

func (r *GormTitleRepository) GenresBySlugs(ctx context.Context, slugs []string) ([]model.Genre, []string, error) {
	if len(slugs) == 0 {
		return []model.Genre{}, nil, nil
	}

	var found []model.Genre
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&found).Error; err != nil {
		return nil, nil, apperrors.WrapGormError(err, "genre")
	}
	bySlug := make(map[string]model.Genre, len(found))
	for _, g := range found {
		bySlug[g.Slug] = g
	}

	genres := make([]model.Genre, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))
	var missing []string
	for _, s := range slugs {
		if seen[s] {
			continue
		}
		seen[s] = true
		g, ok := bySlug[s]
		if !ok {
			missing = append(missing, s)
			continue
		}
		genres = append(genres, g)
	}
	return genres, missing, nil
}
