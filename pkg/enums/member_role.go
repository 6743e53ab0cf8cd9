package enums

import "slices"

// MemberRole represents a tenant-level permissions role.
type MemberRole string

const (
	MemberRoleHead        MemberRole = "SPPG_KEPALA"
	MemberRoleAdmin       MemberRole = "SPPG_ADMIN"
	MemberRoleAccountant  MemberRole = "SPPG_AKUNTAN"
	MemberRoleProcurement MemberRole = "SPPG_PROCUREMENT"
	MemberRoleStaff       MemberRole = "SPPG_STAFF"
	MemberRoleViewer      MemberRole = "SPPG_VIEWER"
	// MemberRoleSuperadmin operates across tenants.
	MemberRoleSuperadmin  MemberRole = "PLATFORM_SUPERADMIN"
)

var validMemberRoles = []MemberRole{
	MemberRoleHead,
	MemberRoleAdmin,
	MemberRoleAccountant,
	MemberRoleProcurement,
	MemberRoleStaff,
	MemberRoleViewer,
	MemberRoleSuperadmin,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	return slices.Contains(validMemberRoles, m)
}

// IsTenantManager reports whether the role heads or administers a tenant.
func (m MemberRole) IsTenantManager() bool {
	return m == MemberRoleHead || m == MemberRoleAdmin
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	return parse(value, validMemberRoles, "member role")
}
