// Package authz resolves (role, resource, action, ownership) to allow or
// deny. Every handler asks the same Enforcer; the rules live in the
// embedded casbin model and policy.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/common/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

type Resource string

const (
	ResourceCategory Resource = "category"
	ResourceGenre    Resource = "genre"
	ResourceTitle    Resource = "title"
	ResourceReview   Resource = "review"
	ResourceComment  Resource = "comment"
	ResourceUser     Resource = "user"
	ResourceProfile  Resource = "profile"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RoleAnonymous 未登录请求使用的角色
const RoleAnonymous = "anonymous"

const (
	ownershipOwn   = "own"
	ownershipOther = "other"
)

// Principal 当前请求的身份
type Principal struct {
	UserID   int64
	Username string
	Role     string
}

// Anonymous 未登录身份
var Anonymous = Principal{Role: RoleAnonymous}

func (p Principal) IsAuthenticated() bool {
	return p.UserID != 0
}

// Owns 资源作者是否为当前用户
func (p Principal) Owns(ownerID int64) bool {
	return p.IsAuthenticated() && p.UserID == ownerID
}

// Enforcer wraps a synced casbin enforcer loaded with the embedded rules.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer 加载内置模型和策略
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy 解析内置 CSV 策略
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 5:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3], parts[4]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether p may perform action on resource. ownerID is the
// author of the target object, 0 when there is none.
func (e *Enforcer) Can(p Principal, resource Resource, action Action, ownerID int64) bool {
	role := p.Role
	if role == "" {
		role = RoleAnonymous
	}
	own := ownershipOther
	if p.Owns(ownerID) {
		own = ownershipOwn
	}

	allowed, err := e.enforcer.Enforce(role, string(resource), string(action), own)
	if err != nil {
		allowed = false
	}
	metrics.RecordAuthzDecision(role, string(resource), string(action), allowed)
	return allowed
}

// Authorize is Can with the error a handler should return: 401 for
// anonymous callers, 403 for authenticated ones.
func (e *Enforcer) Authorize(p Principal, resource Resource, action Action, ownerID int64) error {
	if e.Can(p, resource, action, ownerID) {
		return nil
	}
	if !p.IsAuthenticated() {
		return apperrors.ErrUnauthenticated
	}
	return apperrors.ErrPermissionDenied
}
