package domain

type Role string

const (
	// Student is the default role assigned at self-registration
	RoleStudent Role = "student"
	// Teacher can manage class material; no user administration
	RoleTeacher Role = "teacher"
	// Admin can manage users, except other admins and the super admin
	RoleAdmin Role = "admin"
	// SuperAdmin is bound to the reserved account; full privileges
	RoleSuperAdmin Role = "super_admin"
)

func IsValidRole(r string) bool {
	switch r {
	case string(RoleStudent), string(RoleTeacher), string(RoleAdmin), string(RoleSuperAdmin):
		return true
	}
	return false
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleStudent):
		return 1
	case string(RoleTeacher):
		return 2
	case string(RoleAdmin):
		return 3
	case string(RoleSuperAdmin):
		return 4
	default:
		return 0
	}
}
