package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Address string `json:"address"`
}

type SecurityConfig struct {
	MaxBodySize      int64    `json:"maxBodySize"`      // 单位：字节
	AllowedHosts     []string `json:"allowedHosts"`     // 为空不校验；"*" 放行全部；".example.com" 匹配子域名
	AllowedMethods   []string `json:"allowedMethods"`
	RequireUserAgent bool     `json:"requireUserAgent"` // 缺少 User-Agent 时拒绝
}

type TimeoutConfig struct {
	RequestTimeout int `json:"requestTimeout"` // 单位：秒
}

type CORSConfig struct {
	AllowOrigins     []string      `json:"allowOrigins"`
	AllowMethods     []string      `json:"allowMethods"`
	AllowHeaders     []string      `json:"allowHeaders"`
	ExposeHeaders    []string      `json:"exposeHeaders"`
	AllowCredentials bool          `json:"allowCredentials"`
	MaxAge           time.Duration `json:"maxAge"`
	TrustedDomains   []string      `json:"trustedDomains"`
}

type JWTAuthConfig struct {
	Secret         string        `json:"secret"`
	ExpireDuration time.Duration `json:"expireDuration"`
	RefreshTTL     time.Duration `json:"refreshTTL"`
	Issuer         string        `json:"issuer"`
	SigningMethod  string        `json:"signingMethod"`
	Realm          string        `json:"realm"` // JWT领域标识
}

type RateLimitConfig struct {
	Rate     int           `json:"rate"`     // 每个客户端的突发上限
	Interval time.Duration `json:"interval"` // 补充一个令牌的间隔
}

type MiddlewareConfig struct {
	Security  SecurityConfig  `json:"security"`
	JWT       JWTAuthConfig   `json:"jwt"`
	Timeout   TimeoutConfig   `json:"timeout"`
	CORS      CORSConfig      `json:"cors"`
	RateLimit RateLimitConfig `json:"rateLimit"`
}

// 数据库配置
type DatabaseConfig struct {
	Driver      string `json:"driver"`      // mysql | postgres | sqlite
	DSN         string `json:"dsn"`         // 非空时直接使用，忽略下面的连接参数
	Host        string `json:"host"`        // 数据库主机地址
	Port        int    `json:"port"`        // 数据库端口
	Username    string `json:"username"`    // 数据库用户名
	Password    string `json:"password"`    // 数据库密码
	DBName      string `json:"dbname"`      // 数据库名称（sqlite 时为文件路径）
	UseUnixSock bool   `json:"useUnixSock"` // 是否使用Unix套接字连接
	SSLMode     string `json:"sslMode"`     // 仅 postgres
	MinPoolSize int    `json:"minPoolSize"` // 连接池最小连接数
	MaxPoolSize int    `json:"maxPoolSize"` // 连接池最大连接数
	LogLevel    string `json:"logLevel"`    // GORM日志级别
}

// AuthConfig 确认码相关配置
type AuthConfig struct {
	CodeMin        int  `json:"codeMin"`
	CodeMax        int  `json:"codeMax"`
	SingleUseCodes bool `json:"singleUseCodes"` // 换取令牌后是否作废确认码
	BcryptCost     int  `json:"bcryptCost"`
}

type MailConfig struct {
	Backend          string        `json:"backend"` // smtp | log
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	Username         string        `json:"username"`
	Password         string        `json:"password"`
	From             string        `json:"from"`
	Subject          string        `json:"subject"`
	Timeout          time.Duration `json:"timeout"`
	FailureThreshold uint32        `json:"failureThreshold"` // 连续失败多少次后熔断
	OpenTimeout      time.Duration `json:"openTimeout"`      // 熔断后多久进入半开
}

type PaginationConfig struct {
	PageSize    int `json:"pageSize"`
	MaxPageSize int `json:"maxPageSize"`
}

type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Middleware MiddlewareConfig `json:"middleware"`
	Auth       AuthConfig       `json:"auth"`
	Mail       MailConfig       `json:"mail"`
	Pagination PaginationConfig `json:"pagination"`
	Env        string           `json:"env"` // 环境标识
}

// defaults 每次返回一份新的默认配置，切片不与调用方共享
func defaults() Config {
	return Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Database: DatabaseConfig{
			Driver:      "mysql",
			Host:        "localhost",
			Port:        3306,
			Username:    "root",
			Password:    "root",
			DBName:      "yamdb",
			UseUnixSock: false,
			SSLMode:     "disable",
			MinPoolSize: 5,
			MaxPoolSize: 50,
			LogLevel:    "warn",
		},
		Middleware: MiddlewareConfig{
			Security: SecurityConfig{
				MaxBodySize:      10 << 20, // 10MB
				AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				RequireUserAgent: true,
			},
			JWT: JWTAuthConfig{ // JWT默认配置
				Secret:         "dev-secret-change-me-in-production", // 开发环境默认密钥
				ExpireDuration: 24 * time.Hour,
				RefreshTTL:     7 * 24 * time.Hour,
				Issuer:         "api-yamdb",
				SigningMethod:  "HS256",
				Realm:          "api-yamdb",
			},
			Timeout: TimeoutConfig{
				RequestTimeout: 15,
			},
			CORS: CORSConfig{
				AllowOrigins:     []string{"http://localhost:3000"},
				AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-Id"},
				ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
				TrustedDomains:   []string{"localhost"},
			},
			RateLimit: RateLimitConfig{
				Rate:     20,
				Interval: 100 * time.Millisecond,
			},
		},
		Auth: AuthConfig{
			CodeMin:        1111,
			CodeMax:        9999,
			SingleUseCodes: false,
			BcryptCost:     10,
		},
		Mail: MailConfig{
			Backend:          "log",
			Host:             "localhost",
			Port:             25,
			From:             "from@example.com",
			Subject:          "Confirmation code",
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		Pagination: PaginationConfig{
			PageSize:    10,
			MaxPageSize: 100,
		},
		Env: "development",
	}
}

// Default 返回默认配置
func Default() *Config {
	cfg := defaults()
	return &cfg
}

// IsProd 判断当前是否生产环境
func (c *Config) IsProd() bool {
	return c.Env == "production"
}

// Load 加载配置（优先级：环境变量 > .env > 配置文件 > 默认值）
func Load() *Config {
	config := defaults()

	// 1. 尝试从配置文件加载
	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(&config, configPath); err != nil {
			hlog.Warnf("Failed to load config file: %v", err)
		}
	}

	// 2. .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		hlog.Warnf("Failed to load .env file: %v", err)
	}

	// 3. 从环境变量覆盖
	loadFromEnv(&config)

	if config.IsProd() && config.Middleware.JWT.Secret == defaults().Middleware.JWT.Secret {
		hlog.Warn("JWT_SECRET is the development default in production")
	}

	return &config
}

// getConfigPath 获取配置文件路径
func getConfigPath() string {
	// 优先使用环境变量指定的配置文件路径
	if path := os.Getenv("APP_CONFIG"); path != "" {
		return path
	}

	searchPaths := []string{
		"./config.json",
		"../config.json",
		"/etc/api-yamdb/config.json",
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadFromFile 从文件加载配置
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadFromEnv 从环境变量加载配置
func loadFromEnv(config *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		config.Server.Address = v
	}

	if v := os.Getenv("APP_ENV"); v != "" {
		config.Env = v
	}

	// 中间件配置
	if v := os.Getenv("MAX_BODY_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Middleware.Security.MaxBodySize = size
		}
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			config.Middleware.Timeout.RequestTimeout = timeout
		}
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			config.Middleware.RateLimit.Rate = rate
		}
	}

	if v := os.Getenv("ALLOWED_HOSTS"); v != "" {
		config.Middleware.Security.AllowedHosts = splitEnvList(v)
	}

	if v := os.Getenv("REQUIRE_USER_AGENT"); v != "" {
		config.Middleware.Security.RequireUserAgent = parseBool(v)
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		config.Middleware.CORS.AllowOrigins = splitEnvList(v)
	}

	/****** JWT 配置 ******/
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Middleware.JWT.Secret = v
	}

	if v := os.Getenv("JWT_EXPIRATION"); v != "" {
		if duration, err := time.ParseDuration(v); err == nil {
			config.Middleware.JWT.ExpireDuration = duration
		} else {
			hlog.Warnf("Invalid JWT_EXPIRATION format: %v", err)
		}
	}

	if v := os.Getenv("JWT_REFRESH_EXPIRATION"); v != "" {
		if duration, err := time.ParseDuration(v); err == nil {
			config.Middleware.JWT.RefreshTTL = duration
		} else {
			hlog.Warnf("Invalid JWT_REFRESH_EXPIRATION format: %v", err)
		}
	}

	if v := os.Getenv("JWT_ISSUER"); v != "" {
		config.Middleware.JWT.Issuer = v
	}

	if v := os.Getenv("JWT_ALGORITHM"); v != "" {
		if alg, ok := normalizeAlgorithm(v); ok {
			config.Middleware.JWT.SigningMethod = alg
		} else {
			hlog.Warnf("Unsupported JWT algorithm: %s", v)
		}
	}

	// 数据库配置
	if v := os.Getenv("DB_DRIVER"); v != "" {
		config.Database.Driver = strings.ToLower(v)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.DSN = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		config.Database.Host = v
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Database.Port = port
		}
	}

	if v := os.Getenv("DB_USER"); v != "" {
		config.Database.Username = v
	}

	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}

	if v := os.Getenv("DB_NAME"); v != "" {
		config.Database.DBName = v
	}

	if v := os.Getenv("DB_SOCKET"); v != "" {
		config.Database.UseUnixSock = parseBool(v)
	}

	if v := os.Getenv("DB_SSLMODE"); v != "" {
		config.Database.SSLMode = v
	}

	if v := os.Getenv("DB_MIN_POOL"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			config.Database.MinPoolSize = size
		}
	}

	if v := os.Getenv("DB_MAX_POOL"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			config.Database.MaxPoolSize = size
		}
	}

	if v := os.Getenv("DB_LOG_LEVEL"); v != "" {
		config.Database.LogLevel = strings.ToLower(v)
	}

	// 确认码
	if v := os.Getenv("AUTH_SINGLE_USE_CODES"); v != "" {
		config.Auth.SingleUseCodes = parseBool(v)
	}

	if v := os.Getenv("AUTH_BCRYPT_COST"); v != "" {
		if cost, err := strconv.Atoi(v); err == nil {
			config.Auth.BcryptCost = cost
		}
	}

	// 邮件
	if v := os.Getenv("MAIL_BACKEND"); v != "" {
		config.Mail.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		config.Mail.Host = v
	}

	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Mail.Port = port
		}
	}

	if v := os.Getenv("SMTP_USER"); v != "" {
		config.Mail.Username = v
	}

	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		config.Mail.Password = v
	}

	if v := os.Getenv("MAIL_FROM"); v != "" {
		config.Mail.From = v
	}

	if v := os.Getenv("PAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			config.Pagination.PageSize = size
		}
	}
}

// normalizeAlgorithm 清理并校验签名算法
func normalizeAlgorithm(v string) (string, bool) {
	algorithm := strings.ToLower(strings.ReplaceAll(v, " ", ""))

	validAlgorithms := map[string]bool{
		"hs256": true,
		"hs384": true,
		"hs512": true,
	}
	if !validAlgorithms[algorithm] {
		return "", false
	}
	return strings.ToUpper(algorithm), true
}

// 分割环境变量列表（支持逗号分隔的字符串）
func splitEnvList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// 转换字符串为布尔值
func parseBool(value string) bool {
	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes"
}
