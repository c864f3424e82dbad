package identity

import (
	"context"

	"github.com/classhub/identity-service/internal/domain"
)

func (s *Service) GetByID(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByAccount(ctx context.Context, account string) (domain.User, error) {
	if account == "" {
		return domain.User{}, domain.ErrMissingField("account")
	}
	return s.users.GetByAccount(ctx, account)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return s.users.GetByEmail(ctx, email)
}

func (s *Service) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	if phone == "" {
		return domain.User{}, domain.ErrMissingField("phone")
	}
	return s.users.GetByPhone(ctx, phone)
}

// ListResult pages the admin user listing.
type ListResult struct {
	Users      []domain.User
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

func (s *Service) ListUsers(ctx context.Context, q ListQuery) (ListResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Role != "" && !domain.IsValidRole(q.Role) {
		return ListResult{}, domain.ErrInvalidRole(q.Role)
	}
	if q.Status != "" && !domain.IsValidStatus(q.Status) {
		return ListResult{}, domain.ErrInvalidStatus(q.Status)
	}

	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return ListResult{}, err
	}

	pages := total / q.PageSize
	if total%q.PageSize != 0 {
		pages++
	}

	return ListResult{
		Users:      users,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: pages,
	}, nil
}
