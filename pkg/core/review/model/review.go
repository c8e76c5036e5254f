package model

import (
	"time"

	"gorm.io/gorm"

	catalogmodel "api-yamdb/pkg/core/catalog/model"
	usermodel "api-yamdb/pkg/core/user/model"
)

// Review 每个作者对同一作品只能有一条评价
type Review struct {
	ID       int64               `gorm:"primaryKey;autoIncrement"`
	TitleID  int64               `gorm:"not null;uniqueIndex:idx_review_title_author,priority:1"`
	Title    *catalogmodel.Title `gorm:"constraint:OnDelete:CASCADE"`
	AuthorID int64               `gorm:"not null;uniqueIndex:idx_review_title_author,priority:2;index"`
	Author   *usermodel.User     `gorm:"constraint:OnDelete:CASCADE"`
	Text     string              `gorm:"type:text;not null"`
	Score    int                 `gorm:"not null"`
	PubDate  time.Time           `gorm:"autoCreateTime;index"`
}

func (Review) TableName() string {
	return "reviews"
}

// AuthorName 序列化时的作者字段
func (r *Review) AuthorName() string {
	if r.Author == nil {
		return ""
	}
	return r.Author.Username
}

type Comment struct {
	ID       int64           `gorm:"primaryKey;autoIncrement"`
	ReviewID int64           `gorm:"not null;index"`
	Review   *Review         `gorm:"constraint:OnDelete:CASCADE"`
	AuthorID int64           `gorm:"not null;index"`
	Author   *usermodel.User `gorm:"constraint:OnDelete:CASCADE"`
	Text     string          `gorm:"type:text;not null"`
	PubDate  time.Time       `gorm:"autoCreateTime;index"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) AuthorName() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.Username
}

// AutoMigrate 依赖 users 和 titles 表已经存在
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Review{}, &Comment{})
}
