package model

import (
	catalogmodel "api-yamdb/pkg/core/catalog/model"
)

type (
	TermRes struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}

	// TitleReadRes 列表和详情：嵌套分类、体裁和评分
	TitleReadRes struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Year        int       `json:"year"`
		Category    *TermRes  `json:"category"`
		Genre       []TermRes `json:"genre"`
		Description string    `json:"description"`
		Rating      *int      `json:"rating"`
	}

	// TitleWriteRes 创建和修改：分类、体裁以 slug 表示
	TitleWriteRes struct {
		ID          int64    `json:"id"`
		Name        string   `json:"name"`
		Year        int      `json:"year"`
		Category    *string  `json:"category"`
		Genre       []string `json:"genre"`
		Description string   `json:"description"`
	}
)

func NewCategoryRes(c catalogmodel.Category) TermRes {
	return TermRes{Name: c.Name, Slug: c.Slug}
}

func NewGenreRes(g catalogmodel.Genre) TermRes {
	return TermRes{Name: g.Name, Slug: g.Slug}
}

func NewCategoryList(categories []catalogmodel.Category) []TermRes {
	out := make([]TermRes, 0, len(categories))
	for _, c := range categories {
		out = append(out, NewCategoryRes(c))
	}
	return out
}

func NewGenreList(genres []catalogmodel.Genre) []TermRes {
	out := make([]TermRes, 0, len(genres))
	for _, g := range genres {
		out = append(out, NewGenreRes(g))
	}
	return out
}

func NewTitleReadRes(t catalogmodel.Title) TitleReadRes {
	res := TitleReadRes{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Genre:       NewGenreList(t.Genres),
		Description: t.Description,
		Rating:      t.Rating(),
	}
	if t.Category != nil {
		c := NewCategoryRes(*t.Category)
		res.Category = &c
	}
	return res
}

func NewTitleList(titles []catalogmodel.Title) []TitleReadRes {
	out := make([]TitleReadRes, 0, len(titles))
	for _, t := range titles {
		out = append(out, NewTitleReadRes(t))
	}
	return out
}

func NewTitleWriteRes(t catalogmodel.Title) TitleWriteRes {
	return TitleWriteRes{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Category:    t.CategorySlug(),
		Genre:       t.GenreSlugs(),
		Description: t.Description,
	}
}
