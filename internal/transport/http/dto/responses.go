package dto

import (
	"time"

	"github.com/classhub/identity-service/internal/application/identity"
	"github.com/classhub/identity-service/internal/domain"
)

// UserView is the standard user payload. The password hash and the
// lockout counters never leave the service.
type UserView struct {
	ID        string     `json:"id"`
	Account   string     `json:"account"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role"`
	Avatar    string     `json:"avatar,omitempty"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func NewUserView(u domain.User) UserView {
	v := UserView{
		ID:       u.ID,
		Account:  u.Account,
		Username: u.Username,
		Email:    u.Email,
		Phone:    u.Phone,
		Role:     u.Role,
		Avatar:   u.Avatar,
		Status:   string(u.Status),
	}
	if !u.CreatedAt.IsZero() {
		t := u.CreatedAt
		v.CreatedAt = &t
	}
	return v
}

// TokensView is the standard token payload.
type TokensView struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

func NewTokensView(t identity.AuthTokens) TokensView {
	return TokensView{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
	}
}

// AuthData is returned by register/login.
type AuthData struct {
	User   UserView   `json:"user"`
	Tokens TokensView `json:"tokens"`
}

// MeData is returned by /me.
type MeData struct {
	User UserView `json:"user"`
}

// LogoutData reports how many sessions were revoked.
type LogoutData struct {
	Revoked int64 `json:"revoked"`
}

// UserListData is returned by the admin listing.
type UserListData struct {
	Users      []UserView `json:"users"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

func NewUserListData(res identity.ListResult) UserListData {
	views := make([]UserView, 0, len(res.Users))
	for _, u := range res.Users {
		views = append(views, NewUserView(u))
	}
	return UserListData{
		Users:      views,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	}
}
