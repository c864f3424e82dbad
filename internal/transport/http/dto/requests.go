package dto

import "strings"

// -------- Self-service --------

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,cn_mobile"`
}

func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	return checkStruct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	return checkStruct(r)
}

type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=20"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,cn_mobile"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=500"`
}

func (r *UpdateProfileRequest) Validate() error {
	if r.Username != nil {
		trimmed := strings.TrimSpace(*r.Username)
		r.Username = &trimmed
	}
	if r.Email != nil {
		lowered := strings.TrimSpace(strings.ToLower(*r.Email))
		r.Email = &lowered
	}
	return checkStruct(r)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

func (r *ChangePasswordRequest) Validate() error {
	return checkStruct(r)
}

type RevokeTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (r *RevokeTokenRequest) Validate() error {
	return checkStruct(r)
}

// -------- Admin --------

type AdminCreateUserRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,user_role"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,cn_mobile"`
}

func (r *AdminCreateUserRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	return checkStruct(r)
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,user_role"`
}

func (r *SetRoleRequest) Validate() error {
	return checkStruct(r)
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active disabled"`
}

func (r *SetStatusRequest) Validate() error {
	return checkStruct(r)
}
