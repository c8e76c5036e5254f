// Package schema creates every table in dependency order.
package schema

import (
	"fmt"

	"gorm.io/gorm"

	catalogmodel "api-yamdb/pkg/core/catalog/model"
	reviewmodel "api-yamdb/pkg/core/review/model"
	usermodel "api-yamdb/pkg/core/user/model"
)

// Migrate 评价和评论依赖用户和作品表，顺序不能调换
func Migrate(db *gorm.DB) error {
	steps := []struct {
		name string
		fn   func(*gorm.DB) error
	}{
		{"users", usermodel.AutoMigrate},
		{"catalog", catalogmodel.AutoMigrate},
		{"reviews", reviewmodel.AutoMigrate},
	}
	for _, step := range steps {
		if err := step.fn(db); err != nil {
			return fmt.Errorf("migrate %s: %w", step.name, err)
		}
	}
	return nil
}
