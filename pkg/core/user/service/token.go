package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jwth "github.com/hertz-contrib/jwt"

	"api-yamdb/pkg/common/config"
	apperrors "api-yamdb/pkg/common/errors"
	"api-yamdb/pkg/core/user/model"
)

const (
	claimUserID    = "user_id"
	claimUsername  = "username"
	claimTokenType = "token_type"

	tokenTypeRefresh = "refresh"
)

// TokenPair 换取令牌的结果
type TokenPair struct {
	Access        string
	AccessExpires time.Time
	Refresh       string
}

// TokenIssuer 访问令牌由 hertz-contrib/jwt 签发和解析，刷新令牌单独用 golang-jwt 签发
type TokenIssuer struct {
	mw         *jwth.HertzJWTMiddleware
	cfg        config.JWTAuthConfig
	signMethod jwt.SigningMethod
	now        func() time.Time
}

func NewTokenIssuer(cfg config.JWTAuthConfig) (*TokenIssuer, error) {
	method := jwt.GetSigningMethod(cfg.SigningMethod)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	ti := &TokenIssuer{cfg: cfg, signMethod: method, now: time.Now}
	mw, err := jwth.New(&jwth.HertzJWTMiddleware{
		Realm:            cfg.Realm,
		SigningAlgorithm: cfg.SigningMethod,
		Key:              []byte(cfg.Secret),
		Timeout:          cfg.ExpireDuration,
		TimeFunc:         func() time.Time { return ti.now() },
		IdentityKey:      claimUserID,
		TokenLookup:      "header:Authorization",
		TokenHeadName:    "Bearer",
		PayloadFunc: func(data interface{}) jwth.MapClaims {
			if u, ok := data.(*model.User); ok {
				return jwth.MapClaims{
					claimUserID:   u.ID,
					claimUsername: u.Username,
					"iss":         cfg.Issuer,
				}
			}
			return jwth.MapClaims{}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("JWT middleware init failed: %w", err)
	}
	ti.mw = mw
	return ti, nil
}

// Issue 签发访问令牌和刷新令牌
func (ti *TokenIssuer) Issue(user *model.User) (TokenPair, error) {
	access, expires, err := ti.mw.TokenGenerator(user)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	now := ti.now()
	refresh := jwt.NewWithClaims(ti.signMethod, jwt.MapClaims{
		claimUserID:    user.ID,
		claimUsername:  user.Username,
		claimTokenType: tokenTypeRefresh,
		"iss":          ti.cfg.Issuer,
		"iat":          now.Unix(),
		"exp":          now.Add(ti.cfg.RefreshTTL).Unix(),
		"jti":          uuid.NewString(),
	})
	signedRefresh, err := refresh.SignedString([]byte(ti.cfg.Secret))
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{Access: access, AccessExpires: expires, Refresh: signedRefresh}, nil
}

// IdentityFromRequest 解析 Authorization 头里的访问令牌。
// 没有 Authorization 头时返回 (0, nil)。
func (ti *TokenIssuer) IdentityFromRequest(ctx context.Context, c *app.RequestContext) (int64, error) {
	if len(c.GetHeader("Authorization")) == 0 {
		return 0, nil
	}

	claims, err := ti.mw.GetClaimsFromJWT(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}
	if claims[claimTokenType] == tokenTypeRefresh {
		return 0, fmt.Errorf("%w: refresh token used as access token", apperrors.ErrInvalidToken)
	}
	return userIDFromClaims(claims)
}

// ParseRefresh 校验刷新令牌并返回用户 ID
func (ti *TokenIssuer) ParseRefresh(token string) (int64, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) { return []byte(ti.cfg.Secret), nil },
		jwt.WithValidMethods([]string{ti.signMethod.Alg()}),
		jwt.WithIssuer(ti.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return ti.now() }),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims[claimTokenType] != tokenTypeRefresh {
		return 0, fmt.Errorf("%w: not a refresh token", apperrors.ErrInvalidToken)
	}
	return userIDFromClaims(claims)
}

// JSON 解出来的数字是 float64
func userIDFromClaims[M ~map[string]interface{}](claims M) (int64, error) {
	switch v := claims[claimUserID].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s claim missing", apperrors.ErrInvalidToken, claimUserID)
	}
}
