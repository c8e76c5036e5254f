package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/validation"
	"api-yamdb/pkg/core/catalog/model"
	"api-yamdb/pkg/core/catalog/repository/dao"
)

type CatalogService interface {
	ListCategories(ctx context.Context, filter dao.TermFilter) ([]model.Category, int64, error)
	CreateCategory(ctx context.Context, in TermInput) (model.Category, error)
	DeleteCategory(ctx context.Context, slug string) error

	ListGenres(ctx context.Context, filter dao.TermFilter) ([]model.Genre, int64, error)
	CreateGenre(ctx context.Context, in TermInput) (model.Genre, error)
	DeleteGenre(ctx context.Context, slug string) error

	ListTitles(ctx context.Context, filter dao.TitleFilter) ([]model.Title, int64, error)
	GetTitle(ctx context.Context, id int64) (model.Title, error)
	CreateTitle(ctx context.Context, in TitleInput) (model.Title, error)
	UpdateTitle(ctx context.Context, id int64, patch TitlePatch) (model.Title, error)
	DeleteTitle(ctx context.Context, id int64) error
}

type (
	TermInput struct {
		Name string `json:"name" validate:"required,max=256"`
		Slug string `json:"slug" validate:"required,max=50,slug"`
	}

	// TitleInput 写接口用 slug 引用分类和体裁
	TitleInput struct {
		Name        string   `json:"name" validate:"required,max=256"`
		Year        int      `json:"year" validate:"required,notfuture"`
		Description string   `json:"description"`
		Category    string   `json:"category" validate:"required"`
		Genre       []string `json:"genre" validate:"required"`
	}

	TitlePatch struct {
		Name        *string   `json:"name" validate:"omitnil,min=1,max=256"`
		Year        *int      `json:"year" validate:"omitnil,notfuture"`
		Description *string   `json:"description"`
		Category    *string   `json:"category" validate:"omitnil,min=1"`
		Genre       *[]string `json:"genre"`
	}
)

type Service struct {
	categories dao.CategoryRepository
	genres     dao.GenreRepository
	titles     dao.TitleRepository
}

func NewCatalogService(categories dao.CategoryRepository, genres dao.GenreRepository, titles dao.TitleRepository) *Service {
	return &Service{categories: categories, genres: genres, titles: titles}
}

var _ CatalogService = (*Service)(nil)

func (s *Service) ListCategories(ctx context.Context, filter dao.TermFilter) ([]model.Category, int64, error) {
	return s.categories.List(ctx, filter)
}

func (s *Service) CreateCategory(ctx context.Context, in TermInput) (model.Category, error) {
	category := model.Category{Name: in.Name, Slug: in.Slug}
	err := createTerm(ctx, s.categories, in, &category, "category")
	return category, err
}

func (s *Service) DeleteCategory(ctx context.Context, slug string) error {
	return s.categories.DeleteBySlug(ctx, slug)
}

func (s *Service) ListGenres(ctx context.Context, filter dao.TermFilter) ([]model.Genre, int64, error) {
	return s.genres.List(ctx, filter)
}

func (s *Service) CreateGenre(ctx context.Context, in TermInput) (model.Genre, error) {
	genre := model.Genre{Name: in.Name, Slug: in.Slug}
	err := createTerm(ctx, s.genres, in, &genre, "genre")
	return genre, err
}

func (s *Service) DeleteGenre(ctx context.Context, slug string) error {
	return s.genres.DeleteBySlug(ctx, slug)
}

func createTerm[T model.Term](ctx context.Context, repo dao.TermRepository[T], in TermInput, term *T, what string) error {
	if err := validation.ValidateStruct(&in); err != nil {
		return err
	}

	taken := apperrors.Field("slug", fmt.Sprintf("%s with this slug already exists.", what))
	exists, err := repo.IsSlugExists(ctx, in.Slug)
	if err != nil {
		return err
	}
	if exists {
		return taken
	}
	if err := repo.Create(ctx, term); err != nil {
		if apperrors.IsDuplicateError(err) {
			return taken
		}
		return err
	}
	return nil
}

func (s *Service) ListTitles(ctx context.Context, filter dao.TitleFilter) ([]model.Title, int64, error) {
	return s.titles.List(ctx, filter)
}

func (s *Service) GetTitle(ctx context.Context, id int64) (model.Title, error) {
	return s.titles.QueryByID(ctx, id)
}

func (s *Service) CreateTitle(ctx context.Context, in TitleInput) (model.Title, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return model.Title{}, err
	}

	var out model.Title
	err := s.titles.Transaction(ctx, func(repo dao.TitleRepository) error {
		category, genres, err := resolveRefs(ctx, repo, &in.Category, in.Genre)
		if err != nil {
			return err
		}

		title := model.Title{
			Name:        in.Name,
			Year:        in.Year,
			Description: in.Description,
			CategoryID:  &category.ID,
			Genres:      genres,
		}
		if err := repo.Create(ctx, &title); err != nil {
			return err
		}
		out, err = repo.QueryByID(ctx, title.ID)
		return err
	})
	return out, err
}

func (s *Service) UpdateTitle(ctx context.Context, id int64, patch TitlePatch) (model.Title, error) {
	if err := validation.ValidateStruct(&patch); err != nil {
		return model.Title{}, err
	}

	var out model.Title
	err := s.titles.Transaction(ctx, func(repo dao.TitleRepository) error {
		title, err := repo.QueryByID(ctx, id)
		if err != nil {
			return err
		}

		var slugs []string
		if patch.Genre != nil {
			slugs = *patch.Genre
		}
		category, genres, err := resolveRefs(ctx, repo, patch.Category, slugs)
		if err != nil {
			return err
		}
		if patch.Genre == nil {
			genres = nil
		}

		if patch.Name != nil {
			title.Name = *patch.Name
		}
		if patch.Year != nil {
			title.Year = *patch.Year
		}
		if patch.Description != nil {
			title.Description = *patch.Description
		}
		if category != nil {
			title.CategoryID = &category.ID
		}

		if err := repo.Update(ctx, &title, genres); err != nil {
			return err
		}
		out, err = repo.QueryByID(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) DeleteTitle(ctx context.Context, id int64) error {
	return s.titles.Delete(ctx, id)
}

// resolveRefs 把 slug 换成记录，未知 slug 作为字段错误返回。
// categorySlug 为 nil 时返回的分类也为 nil。
func resolveRefs(ctx context.Context, repo dao.TitleRepository, categorySlug *string, genreSlugs []string) (*model.Category, []model.Genre, error) {
	fe := apperrors.FieldErrors{}

	var category *model.Category
	if categorySlug != nil {
		c, err := repo.CategoryBySlug(ctx, *categorySlug)
		switch {
		case err == nil:
			category = &c
		case errors.Is(err, apperrors.ErrNotFound):
			fe.Add("category", unknownSlug(*categorySlug))
		default:
			return nil, nil, err
		}
	}

	genres, missing, err := repo.GenresBySlugs(ctx, genreSlugs)
	if err != nil {
		return nil, nil, err
	}
	for _, slug := range missing {
		fe.Add("genre", unknownSlug(slug))
	}

	if len(fe) > 0 {
		return nil, nil, fe
	}
	return category, genres, nil
}

func unknownSlug(slug string) string {
	return fmt.Sprintf("Object with slug=%s does not exist.", slug)
}
