package http_handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classhub/identity-service/internal/domain"
	"github.com/classhub/identity-service/internal/transport/http/dto"
)

func seedAdmin(users *memUsers) domain.User {
	return seedUser(users, domain.User{
		ID:           "u-admin",
		Account:      "100001",
		Username:     "ops",
		Role:         string(domain.RoleAdmin),
		PasswordHash: "h:admin-pass",
	})
}

func seedRoot(users *memUsers) domain.User {
	return seedUser(users, domain.User{
		ID:           "u-root",
		Account:      domain.ReservedAccount,
		Username:     "admin",
		Role:         string(domain.RoleSuperAdmin),
		PasswordHash: "h:root-pass",
	})
}

func adminReq(method, path string, body map[string]string, t *testing.T, actor domain.User) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, mustJSONBody(t, body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return withUserCtx(req, actor.ID, actor.Account, actor.Role)
}

func TestAdminListUsers_FiltersByRole(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	seedUser(users, domain.User{ID: "s1", Account: "200001", Username: "stu1"})
	seedUser(users, domain.User{ID: "s2", Account: "200002", Username: "stu2"})
	seedUser(users, domain.User{ID: "t1", Account: "200003", Username: "tea1", Role: "teacher"})
	h := NewAdminHandler(svc)

	req := adminReq(http.MethodGet, "/api/admin/users?role=student", nil, t, admin)
	rr := httptest.NewRecorder()
	h.ListUsers(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
	}
	var data dto.UserListData
	mustReadData(t, rr.Body, &data)
	if data.Total != 2 || len(data.Users) != 2 {
		t.Fatalf("expected 2 students, got total=%d len=%d", data.Total, len(data.Users))
	}
	if data.Page != 1 || data.PageSize != 20 {
		t.Fatalf("expected default paging, got page=%d size=%d", data.Page, data.PageSize)
	}
}

func TestAdminCreateUser_Teacher(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	h := NewAdminHandler(svc)

	req := adminReq(http.MethodPost, "/api/admin/users", map[string]string{
		"username": "newteach",
		"password": "secret123",
		"role":     "teacher",
	}, t, admin)
	rr := httptest.NewRecorder()
	h.CreateUser(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d; body=%s", rr.Code, rr.Body.String())
	}
	var data dto.MeData
	mustReadData(t, rr.Body, &data)
	if data.User.Role != "teacher" {
		t.Fatalf("expected teacher role, got %q", data.User.Role)
	}
	if !accountRe.MatchString(data.User.Account) {
		t.Fatalf("expected allocated account, got %q", data.User.Account)
	}
}

func TestAdminCreateUser_SuperAdminRejected(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	h := NewAdminHandler(svc)

	req := adminReq(http.MethodPost, "/api/admin/users", map[string]string{
		"username": "evil",
		"password": "secret123",
		"role":     "super_admin",
	}, t, admin)
	rr := httptest.NewRecorder()
	h.CreateUser(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := mustReadErrorCode(t, rr.Body); code != "invalid_role" {
		t.Fatalf("expected invalid_role, got %q", code)
	}
}

func TestAdminGetUser(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	target := seedUser(users, domain.User{ID: "s1", Account: "200001", Username: "stu1"})
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodGet, "/api/admin/users/s1", nil, t, admin), "id", target.ID)
	rr := httptest.NewRecorder()
	h.GetUser(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var data dto.MeData
	mustReadData(t, rr.Body, &data)
	if data.User.ID != "s1" {
		t.Fatalf("unexpected user: %+v", data.User)
	}
}

func TestAdminSetRole(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	target := seedUser(users, domain.User{ID: "s1", Account: "200001", Username: "stu1"})
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodPost, "/api/admin/users/s1/role", map[string]string{
		"role": "teacher",
	}, t, admin), "id", target.ID)
	rr := httptest.NewRecorder()
	h.SetRole(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
	}
	if users.byID["s1"].Role != "teacher" {
		t.Fatalf("role not persisted: %q", users.byID["s1"].Role)
	}
}

func TestAdminSetRole_ReservedAccountProtected(t *testing.T) {
	svc, users, _ := newTestService(t)
	root := seedRoot(users)
	admin := seedAdmin(users)
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodPost, "/api/admin/users/u-root/role", map[string]string{
		"role": "student",
	}, t, admin), "id", root.ID)
	rr := httptest.NewRecorder()
	h.SetRole(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := mustReadErrorCode(t, rr.Body); code != "super_admin_protected" {
		t.Fatalf("expected super_admin_protected, got %q", code)
	}
}

func TestAdminSetRole_MissingParam(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	h := NewAdminHandler(svc)

	req := adminReq(http.MethodPost, "/api/admin/users//role", map[string]string{
		"role": "teacher",
	}, t, admin)
	rr := httptest.NewRecorder()
	h.SetRole(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := mustReadErrorCode(t, rr.Body); code != "missing_field" {
		t.Fatalf("expected missing_field, got %q", code)
	}
}

func TestAdminSetStatus_DisableAndReenable(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	target := seedUser(users, domain.User{ID: "s1", Account: "200001", Username: "stu1"})
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodPost, "/api/admin/users/s1/status", map[string]string{
		"status": "disabled",
	}, t, admin), "id", target.ID)
	rr := httptest.NewRecorder()
	h.SetStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
	}
	if users.byID["s1"].Status != domain.StatusDisabled {
		t.Fatalf("status not persisted: %q", users.byID["s1"].Status)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	svc, users, tokens := newTestService(t)
	admin := seedAdmin(users)
	target := seedUser(users, domain.User{ID: "s1", Account: "200001", Username: "stu1"})
	tokens.byToken["tok1"] = domain.RefreshToken{UserID: "s1", Token: "tok1"}
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodDelete, "/api/admin/users/s1", nil, t, admin), "id", target.ID)
	rr := httptest.NewRecorder()
	h.DeleteUser(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d; body=%s", rr.Code, rr.Body.String())
	}
	if _, ok := users.byID["s1"]; ok {
		t.Fatalf("user row should be gone")
	}
	if len(tokens.byToken) != 0 {
		t.Fatalf("sessions should be revoked with the user")
	}
}

func TestAdminDeleteUser_ReservedUndeletable(t *testing.T) {
	svc, users, _ := newTestService(t)
	root := seedRoot(users)
	h := NewAdminHandler(svc)

	// even the super admin cannot delete the reserved account
	req := withURLParam(adminReq(http.MethodDelete, "/api/admin/users/u-root", nil, t, root), "id", root.ID)
	rr := httptest.NewRecorder()
	h.DeleteUser(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := mustReadErrorCode(t, rr.Body); code != "super_admin_protected" {
		t.Fatalf("expected super_admin_protected, got %q", code)
	}
}

func TestAdminResetPassword(t *testing.T) {
	svc, users, _ := newTestService(t)
	admin := seedAdmin(users)
	target := seedUser(users, domain.User{
		ID: "s1", Account: "200001", Username: "stu1", PasswordHash: "h:old-pass",
	})
	h := NewAdminHandler(svc)

	req := withURLParam(adminReq(http.MethodPost, "/api/admin/users/s1/reset-password", nil, t, admin), "id", target.ID)
	rr := httptest.NewRecorder()
	h.ResetPassword(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body=%s", rr.Code, rr.Body.String())
	}
	if users.byID["s1"].PasswordHash != "h:123456" {
		t.Fatalf("expected default reset hash, got %q", users.byID["s1"].PasswordHash)
	}
}
