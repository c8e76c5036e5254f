package config

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// buildDSN 按驱动拼接连接串
func (d DatabaseConfig) buildDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.DBName, d.SSLMode)
	case "sqlite":
		return d.DBName
	}

	charsetParam := "charset=utf8mb4&parseTime=True&loc=Local"
	// 自动切换连接方式
	if d.UseUnixSock {
		return fmt.Sprintf("%s:%s@unix(%s)/%s?%s",
			d.Username,
			d.Password,
			d.Host, // 这里host存储的是socket路径
			d.DBName,
			charsetParam)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		d.Username,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
		charsetParam)
}

func (d DatabaseConfig) dialector() (gorm.Dialector, error) {
	dsn := d.buildDSN()
	switch d.Driver {
	case "", "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// InitDB 打开数据库连接并设置连接池
func (c *Config) InitDB() (*gorm.DB, error) {
	return OpenDatabase(c.Database)
}

func OpenDatabase(d DatabaseConfig) (*gorm.DB, error) {
	dialector, err := d.dialector()
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(d.LogLevel)),
		// 唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if d.Driver == "sqlite" {
		// 内存库每个连接都是独立的数据库
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		return db, nil
	}

	sqlDB.SetMaxIdleConns(d.MinPoolSize)
	sqlDB.SetMaxOpenConns(d.MaxPoolSize)

	return db, nil
}
