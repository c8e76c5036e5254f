package model

import (
	usermodel "api-yamdb/pkg/core/user/model"
	"api-yamdb/pkg/core/user/service"
)

// 请求/响应数据结构
type (
	SignupRes struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	TokenRes struct {
		Token   string `json:"token"`
		Refresh string `json:"refresh,omitempty"`
	}

	RefreshReq struct {
		Refresh string `json:"refresh"`
	}

	UserRes struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Bio       string `json:"bio"`
		Role      string `json:"role"`
	}
)

func NewUserRes(u usermodel.User) UserRes {
	return UserRes{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      string(u.Role),
	}
}

func NewUserList(users []usermodel.User) []UserRes {
	out := make([]UserRes, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserRes(u))
	}
	return out
}

// NewTokenRes 刷新接口只返回新的访问令牌
func NewTokenRes(pair service.TokenPair, withRefresh bool) TokenRes {
	res := TokenRes{Token: pair.Access}
	if withRefresh {
		res.Refresh = pair.Refresh
	}
	return res
}
