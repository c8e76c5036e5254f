package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/common/test/assert"
	"gorm.io/gorm"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/catalog/repository/dao"
	"api-yamdb/pkg/core/catalog/repository/dao/impl"
	"api-yamdb/pkg/core/schema"
)

func newCatalog(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := config.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", DBName: ":memory:", LogLevel: "silent"})
	assert.Nil(t, err)
	assert.Nil(t, schema.Migrate(db))

	svc := NewCatalogService(
		impl.NewGormCategoryRepository(db),
		impl.NewGormGenreRepository(db),
		impl.NewGormTitleRepository(db),
	)
	return svc, db
}

func seedTerms(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, in := range []TermInput{{"Film", "movie"}, {"Book", "book"}} {
		_, err := svc.CreateCategory(ctx, in)
		assert.Nil(t, err)
	}
	for _, in := range []TermInput{{"Drama", "drama"}, {"Comedy", "comedy"}, {"Horror", "horror"}} {
		_, err := svc.CreateGenre(ctx, in)
		assert.Nil(t, err)
	}
}

func TestCreateTermValidatesSlug(t *testing.T) {
	svc, _ := newCatalog(t)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, TermInput{Name: "Film", Slug: "bad slug!"})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, 1, len(fe["slug"]))

	_, err = svc.CreateGenre(ctx, TermInput{Slug: "ok"})
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{"This field is required."}, fe["name"])

	_, err = svc.CreateGenre(ctx, TermInput{Name: "Drama", Slug: "drama"})
	assert.Nil(t, err)
	_, err = svc.CreateGenre(ctx, TermInput{Name: "Other", Slug: "drama"})
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{"genre with this slug already exists."}, fe["slug"])
}

func TestListTermsSearchAndPage(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	genres, total, err := svc.ListGenres(ctx, dao.TermFilter{Search: "DRA", Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(1), total)
	assert.DeepEqual(t, "drama", genres[0].Slug)

	genres, total, err = svc.ListGenres(ctx, dao.TermFilter{Offset: 1, Limit: 1})
	assert.Nil(t, err)
	assert.DeepEqual(t, int64(3), total)
	assert.DeepEqual(t, "comedy", genres[0].Slug)
}

func TestCreateTitleResolvesSlugs(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	title, err := svc.CreateTitle(ctx, TitleInput{
		Name: "Alien", Year: 1979, Category: "movie", Genre: []string{"horror", "drama"},
	})
	assert.Nil(t, err)
	assert.DeepEqual(t, "movie", *title.CategorySlug())
	assert.DeepEqual(t, []string{"drama", "horror"}, title.GenreSlugs())
	assert.Assert(t, title.Rating() == nil)

	_, err = svc.CreateTitle(ctx, TitleInput{
		Name: "Ghost", Year: 1990, Category: "cartoon", Genre: []string{"drama", "western"},
	})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{"Object with slug=cartoon does not exist."}, fe["category"])
	assert.DeepEqual(t, []string{"Object with slug=western does not exist."}, fe["genre"])
}

func TestCreateTitleRejectsFutureYear(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)

	_, err := svc.CreateTitle(context.Background(), TitleInput{
		Name: "Soon", Year: time.Now().Year() + 1, Category: "movie", Genre: []string{},
	})
	var fe apperrors.FieldErrors
	assert.Assert(t, errors.As(err, &fe))
	assert.DeepEqual(t, []string{"Year cannot be in the future."}, fe["year"])
}

func TestUpdateTitlePartial(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	title, err := svc.CreateTitle(ctx, TitleInput{
		Name: "Alien", Year: 1979, Description: "space", Category: "movie", Genre: []string{"horror"},
	})
	assert.Nil(t, err)

	name := "Aliens"
	updated, err := svc.UpdateTitle(ctx, title.ID, TitlePatch{Name: &name})
	assert.Nil(t, err)
	assert.DeepEqual(t, "Aliens", updated.Name)
	assert.DeepEqual(t, 1979, updated.Year)
	assert.DeepEqual(t, "space", updated.Description)
	assert.DeepEqual(t, []string{"horror"}, updated.GenreSlugs())

	genres, category := []string{"comedy", "drama"}, "book"
	updated, err = svc.UpdateTitle(ctx, title.ID, TitlePatch{Genre: &genres, Category: &category})
	assert.Nil(t, err)
	assert.DeepEqual(t, []string{"drama", "comedy"}, updated.GenreSlugs())
	assert.DeepEqual(t, "book", *updated.CategorySlug())

	empty := []string{}
	updated, err = svc.UpdateTitle(ctx, title.ID, TitlePatch{Genre: &empty})
	assert.Nil(t, err)
	assert.DeepEqual(t, 0, len(updated.Genres))

	_, err = svc.UpdateTitle(ctx, 999, TitlePatch{Name: &name})
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestListTitlesFilters(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	for _, in := range []TitleInput{
		{Name: "Alien", Year: 1979, Category: "movie", Genre: []string{"horror"}},
		{Name: "Aliens", Year: 1986, Category: "movie", Genre: []string{"horror", "drama"}},
		{Name: "Dune", Year: 1965, Category: "book", Genre: []string{"drama"}},
	} {
		_, err := svc.CreateTitle(ctx, in)
		assert.Nil(t, err)
	}

	cases := []struct {
		filter dao.TitleFilter
		want   []string
	}{
		{dao.TitleFilter{}, []string{"Alien", "Aliens", "Dune"}},
		{dao.TitleFilter{Category: "movie"}, []string{"Alien", "Aliens"}},
		{dao.TitleFilter{Genre: "drama"}, []string{"Aliens", "Dune"}},
		{dao.TitleFilter{Name: "alien"}, []string{"Alien", "Aliens"}},
		{dao.TitleFilter{Year: 1965}, []string{"Dune"}},
		{dao.TitleFilter{Genre: "drama", Category: "movie"}, []string{"Aliens"}},
		{dao.TitleFilter{Genre: "comedy"}, []string{}},
	}
	for _, tc := range cases {
		tc.filter.Limit = 10
		titles, total, err := svc.ListTitles(ctx, tc.filter)
		assert.Nil(t, err)
		names := []string{}
		for _, title := range titles {
			names = append(names, title.Name)
		}
		assert.DeepEqual(t, tc.want, names)
		assert.DeepEqual(t, int64(len(tc.want)), total)
	}
}

func TestRatingIsTruncatedAverage(t *testing.T) {
	svc, db := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	title, err := svc.CreateTitle(ctx, TitleInput{Name: "Alien", Year: 1979, Category: "movie", Genre: []string{}})
	assert.Nil(t, err)

	for i, score := range []int{7, 8, 8} {
		username := []string{"ann", "ben", "cat"}[i]
		assert.Nil(t, db.Exec("INSERT INTO users (username, email, role, status) VALUES (?, ?, 'user', 'active')",
			username, username+"@example.com").Error)
		assert.Nil(t, db.Exec("INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES (?, (SELECT id FROM users WHERE username = ?), 'ok', ?, CURRENT_TIMESTAMP)",
			title.ID, username, score).Error)
	}

	got, err := svc.GetTitle(ctx, title.ID)
	assert.Nil(t, err)
	assert.Assert(t, got.Rating() != nil)
	assert.DeepEqual(t, 7, *got.Rating())
}

func TestDeleteCategorySetsNullAndGenreUnlinks(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	title, err := svc.CreateTitle(ctx, TitleInput{Name: "Alien", Year: 1979, Category: "movie", Genre: []string{"horror", "drama"}})
	assert.Nil(t, err)

	assert.Nil(t, svc.DeleteCategory(ctx, "movie"))
	assert.Nil(t, svc.DeleteGenre(ctx, "horror"))

	got, err := svc.GetTitle(ctx, title.ID)
	assert.Nil(t, err)
	assert.Assert(t, got.CategorySlug() == nil)
	assert.DeepEqual(t, []string{"drama"}, got.GenreSlugs())

	err = svc.DeleteGenre(ctx, "horror")
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestDeleteTitle(t *testing.T) {
	svc, _ := newCatalog(t)
	seedTerms(t, svc)
	ctx := context.Background()

	title, err := svc.CreateTitle(ctx, TitleInput{Name: "Alien", Year: 1979, Category: "movie", Genre: []string{"horror"}})
	assert.Nil(t, err)

	assert.Nil(t, svc.DeleteTitle(ctx, title.ID))
	_, err = svc.GetTitle(ctx, title.ID)
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(err))
	assert.DeepEqual(t, http.StatusNotFound, apperrors.StatusOf(svc.DeleteTitle(ctx, title.ID)))

	// 体裁本身不受影响
	genres, _, err := svc.ListGenres(ctx, dao.TermFilter{Limit: 10})
	assert.Nil(t, err)
	assert.DeepEqual(t, 3, len(genres))
}
