package model

import (
	"time"

	"gorm.io/gorm"
)

// Role 用户角色
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Status 账号状态：注册后待验证，第一次换取令牌后激活
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

type User struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Username    string `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email       string `gorm:"type:varchar(254);uniqueIndex;not null"`
	Role        Role   `gorm:"type:varchar(16);default:user;not null"`
	Bio         string `gorm:"type:text"`
	FirstName   string `gorm:"type:varchar(150)"`
	LastName    string `gorm:"type:varchar(150)"`
	IsSuperuser bool   `gorm:"default:false;not null"`
	Status      Status `gorm:"type:varchar(16);default:pending;not null;index"`
	// PendingCode 邮件里发出的确认码，重发时原样复用
	PendingCode string `gorm:"type:varchar(16)"`
	// CredentialHash 当前有效确认码的 bcrypt 哈希，换取令牌时校验
	CredentialHash string    `gorm:"type:varchar(255)"`
	CreatedAt      time.Time `gorm:"index;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName 定义映射表名
func (User) TableName() string {
	return "users"
}

// EffectiveRole 超级用户按管理员处理
func (u *User) EffectiveRole() Role {
	if u.IsSuperuser {
		return RoleAdmin
	}
	if u.Role == "" {
		return RoleUser
	}
	return u.Role
}

func (u *User) IsAdmin() bool {
	return u.EffectiveRole() == RoleAdmin
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}
