package dao

import (
	"context"

	"api-yamdb/pkg/core/catalog/model"
)

// TermFilter 分类、体裁列表条件
type TermFilter struct {
	Search string // name 子串
	Offset int
	Limit  int
}

// TermRepository 分类和体裁只有增、删、列表
type TermRepository[T model.Term] interface {
	List(ctx context.Context, filter TermFilter) ([]T, int64, error)
	IsSlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, term *T) error
	DeleteBySlug(ctx context.Context, slug string) error
}

type (
	CategoryRepository = TermRepository[model.Category]
	GenreRepository    = TermRepository[model.Genre]
)

// TitleFilter 作品列表条件，零值表示不过滤
type TitleFilter struct {
	Category string // 分类 slug
	Genre    string // 体裁 slug
	Name     string // 名称子串，不区分大小写
	Year     int
	Offset   int
	Limit    int
}

type TitleRepository interface {
	Transaction(ctx context.Context, fn func(repo TitleRepository) error) error

	// QueryByID 带分类、体裁和评分
	QueryByID(ctx context.Context, id int64) (model.Title, error)
	List(ctx context.Context, filter TitleFilter) ([]model.Title, int64, error)

	Create(ctx context.Context, title *model.Title) error
	// Update 写回基本字段；genres 非 nil 时整体替换体裁
	Update(ctx context.Context, title *model.Title, genres []model.Genre) error
	Delete(ctx context.Context, id int64) error

	CategoryBySlug(ctx context.Context, slug string) (model.Category, error)
	// GenresBySlugs 按传入顺序返回，缺失的 slug 单独列出
	GenresBySlugs(ctx context.Context, slugs []string) ([]model.Genre, []string, error)
}
