package model

import (
	"gorm.io/gorm"
)

// Category 作品分类，一个作品最多属于一个分类
type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(256);not null"`
	Slug string `gorm:"type:varchar(50);uniqueIndex;not null"`
}

func (Category) TableName() string {
	return "categories"
}

// Genre 作品体裁，与作品多对多
type Genre struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(256);not null"`
	Slug string `gorm:"type:varchar(50);uniqueIndex;not null"`
}

func (Genre) TableName() string {
	return "genres"
}

// BeforeDelete 先摘掉关联行，title_genres 的外键不级联
func (g *Genre) BeforeDelete(tx *gorm.DB) error {
	return tx.Exec("DELETE FROM title_genres WHERE genre_id = ?", g.ID).Error
}

// Term 分类和体裁共用的约束
type Term interface {
	Category | Genre
}

type Title struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Name        string    `gorm:"type:varchar(256);not null;index"`
	Year        int       `gorm:"not null;index"`
	Description string    `gorm:"type:text"`
	CategoryID  *int64    `gorm:"index"`
	Category    *Category `gorm:"constraint:OnDelete:SET NULL"`
	Genres      []Genre   `gorm:"many2many:title_genres"`
	// AvgScore 查询时由子查询填充，不落表
	AvgScore *float64 `gorm:"->;-:migration;column:avg_score"`
}

func (Title) TableName() string {
	return "titles"
}

// BeforeDelete 清理体裁关联，评论和评价由外键级联删除
func (t *Title) BeforeDelete(tx *gorm.DB) error {
	return tx.Exec("DELETE FROM title_genres WHERE title_id = ?", t.ID).Error
}

// Rating 评分均值取整，没有评价时为 nil
func (t *Title) Rating() *int {
	if t.AvgScore == nil {
		return nil
	}
	r := int(*t.AvgScore)
	return &r
}

// CategorySlug 写接口返回扁平结构时使用
func (t *Title) CategorySlug() *string {
	if t.Category == nil {
		return nil
	}
	return &t.Category.Slug
}

func (t *Title) GenreSlugs() []string {
	slugs := make([]string, 0, len(t.Genres))
	for _, g := range t.Genres {
		slugs = append(slugs, g.Slug)
	}
	return slugs
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Category{}, &Genre{}, &Title{})
}
