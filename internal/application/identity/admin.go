package identity

import (
	"context"
	"strings"

	"github.com/classhub/identity-service/internal/domain"
)

// defaultResetPassword is what AdminResetPassword sets; users are expected
// to change it at next login.
const defaultResetPassword = "123456"

// requireAdmin enforces RBAC in the service as defense in depth; the HTTP
// middleware already gates these routes.
func requireAdmin(actorRole string) error {
	if !domain.IsValidRole(actorRole) {
		return domain.ErrForbidden()
	}
	if domain.RoleRank(actorRole) < domain.RoleRank(string(domain.RoleAdmin)) {
		return domain.ErrInsufficientRole(string(domain.RoleAdmin))
	}
	return nil
}

// SetUserRole changes a user's role. The reserved super-admin account is
// immutable, and the super_admin role itself is never assignable: it is
// bound to exactly one seeded row.
func (s *Service) SetUserRole(ctx context.Context, actorID, actorRole, targetUserID, newRole string) error {
	const action = "admin.set_user_role"

	actorID = strings.TrimSpace(actorID)
	targetUserID = strings.TrimSpace(targetUserID)
	newRole = strings.TrimSpace(newRole)

	audit := s.adminAudit(action, actorID, actorRole, targetUserID)

	if targetUserID == "" {
		return audit(domain.ErrMissingField("user_id"))
	}
	if newRole == "" {
		return audit(domain.ErrMissingField("role"))
	}
	if !domain.IsValidRole(newRole) || newRole == string(domain.RoleSuperAdmin) {
		return audit(domain.ErrInvalidRole(newRole))
	}
	if err := requireAdmin(actorRole); err != nil {
		return audit(err)
	}

	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return audit(err)
	}
	if target.IsReserved() {
		return audit(domain.ErrSuperAdminProtected())
	}

	if err := s.users.SetRole(ctx, targetUserID, newRole); err != nil {
		return audit(err)
	}
	return audit(nil)
}

// SetUserStatus enables or disables a user. The reserved super-admin
// account cannot be disabled.
func (s *Service) SetUserStatus(ctx context.Context, actorID, actorRole, targetUserID string, status domain.Status) error {
	const action = "admin.set_user_status"

	actorID = strings.TrimSpace(actorID)
	targetUserID = strings.TrimSpace(targetUserID)

	audit := s.adminAudit(action, actorID, actorRole, targetUserID)

	if targetUserID == "" {
		return audit(domain.ErrMissingField("user_id"))
	}
	if !domain.IsValidStatus(string(status)) {
		return audit(domain.ErrInvalidStatus(string(status)))
	}
	if err := requireAdmin(actorRole); err != nil {
		return audit(err)
	}

	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return audit(err)
	}
	if target.IsReserved() && status == domain.StatusDisabled {
		return audit(domain.ErrSuperAdminProtected())
	}

	if err := s.users.SetStatus(ctx, targetUserID, status); err != nil {
		return audit(err)
	}
	return audit(nil)
}

// DeleteUser removes a user and, with it, every refresh token the user
// owns. The reserved super-admin account is undeletable, and an admin
// actor cannot delete another admin — only a super admin may.
func (s *Service) DeleteUser(ctx context.Context, actorID, actorRole, targetUserID string) error {
	const action = "admin.delete_user"

	actorID = strings.TrimSpace(actorID)
	targetUserID = strings.TrimSpace(targetUserID)

	audit := s.adminAudit(action, actorID, actorRole, targetUserID)

	if targetUserID == "" {
		return audit(domain.ErrMissingField("user_id"))
	}
	if err := requireAdmin(actorRole); err != nil {
		return audit(err)
	}

	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return audit(err)
	}
	if target.IsReserved() {
		return audit(domain.ErrSuperAdminProtected())
	}
	if actorRole == string(domain.RoleAdmin) && target.Role == string(domain.RoleAdmin) {
		return audit(domain.ErrCannotDeleteAdmin())
	}

	// The FK cascade also covers this; revoking through the store keeps
	// the invariant independent of the backing implementation.
	if _, err := s.tokens.DeleteByUser(ctx, targetUserID); err != nil {
		return audit(err)
	}
	if err := s.users.Delete(ctx, targetUserID); err != nil {
		return audit(err)
	}

	_ = s.pub.PublishUserDeleted(ctx, UserDeletedEvent{
		UserID:  target.ID,
		Account: target.Account,
	})
	return audit(nil)
}

// AdminCreateUser creates a user with a caller-chosen role.
func (s *Service) AdminCreateUser(ctx context.Context, actorID, actorRole, username, password, role, email, phone string) (domain.User, error) {
	if err := requireAdmin(actorRole); err != nil {
		return domain.User{}, err
	}
	if role == "" {
		role = string(domain.RoleStudent)
	}
	if !domain.IsValidRole(role) || role == string(domain.RoleSuperAdmin) {
		return domain.User{}, domain.ErrInvalidRole(role)
	}
	if username == "" || password == "" {
		return domain.User{}, domain.ErrMissingField("username/password")
	}
	if err := validateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := validateNewPassword(password); err != nil {
		return domain.User{}, err
	}
	if email != "" {
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
	}
	if phone != "" {
		if err := validatePhone(phone); err != nil {
			return domain.User{}, err
		}
	}

	u, err := s.createUser(ctx, username, password, role, email, phone)
	if err != nil {
		return domain.User{}, err
	}

	s.audit("admin.create_user", map[string]string{
		"actor_id":  actorID,
		"target_id": u.ID,
		"role":      u.Role,
	})
	return u, nil
}

// AdminResetPassword sets the target's password back to the default and
// revokes the target's sessions.
func (s *Service) AdminResetPassword(ctx context.Context, actorID, actorRole, targetUserID string) error {
	const action = "admin.reset_password"

	actorID = strings.TrimSpace(actorID)
	targetUserID = strings.TrimSpace(targetUserID)

	audit := s.adminAudit(action, actorID, actorRole, targetUserID)

	if targetUserID == "" {
		return audit(domain.ErrMissingField("user_id"))
	}
	if err := requireAdmin(actorRole); err != nil {
		return audit(err)
	}

	if _, err := s.users.GetByID(ctx, targetUserID); err != nil {
		return audit(err)
	}

	hash, err := s.hasher.Hash(defaultResetPassword)
	if err != nil {
		return audit(domain.ErrHashFailed(err))
	}
	if err := s.users.UpdatePasswordHash(ctx, targetUserID, hash); err != nil {
		return audit(err)
	}

	_, _ = s.tokens.DeleteByUser(ctx, targetUserID)
	return audit(nil)
}

// adminAudit returns a terminal audit func: pass the outcome error (nil on
// success), get it back after recording.
func (s *Service) adminAudit(action, actorID, actorRole, targetID string) func(error) error {
	return func(outcome error) error {
		fields := map[string]string{
			"actor_id":   actorID,
			"actor_role": actorRole,
			"target_id":  targetID,
			"result":     "success",
		}
		if outcome != nil {
			fields["result"] = "error"
			fields["error_code"] = domainCode(outcome)
		}
		s.audit(action, fields)
		return outcome
	}
}
