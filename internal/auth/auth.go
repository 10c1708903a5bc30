// Package auth holds the role model and principal types shared by the
// session resolver, the permission gates, and the invite workflow.
package auth

import "strings"

// Role is the single role enumeration used across the platform. The legacy
// scheme (yep-manager, user) that survived in a few collections is normalized
// at the read boundary by NormalizeLegacyRole and never written back.
type Role string

const (
	RoleSuperAdmin  Role = "super-admin"
	RoleAdmin       Role = "admin"
	RoleMentor      Role = "mentor"
	RoleParticipant Role = "participant"

	MethodPassword = "password"
)

// legacy role values still present in old records.
const (
	legacyRoleYEPManager = "yep-manager"
	legacyRoleUser       = "user"
)

// ParseRole returns the role for a raw string, or false if it is not one of
// the four valid roles. Legacy values are not accepted here; callers that
// read stored data should go through NormalizeLegacyRole first.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleMentor:
		return RoleMentor, true
	case RoleParticipant:
		return RoleParticipant, true
	default:
		return "", false
	}
}

// NormalizeLegacyRole maps stored role values, including the legacy scheme,
// onto the unified enumeration. Unknown values yield false.
func NormalizeLegacyRole(raw string) (Role, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case legacyRoleYEPManager:
		return RoleAdmin, true
	case legacyRoleUser:
		return RoleParticipant, true
	}
	return ParseRole(trimmed)
}

// Principal is the resolved caller identity for one request.
type Principal struct {
	AccountID int64
	Email     string
	Role      Role
	Method    string
}

// IsSuperAdmin reports whether the principal holds the super-admin role.
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// IsAdminLevel reports whether the principal may enter the admin area at all.
// Named page-permission checks still apply on top of this for plain admins.
func (p Principal) IsAdminLevel() bool {
	return p.Role == RoleSuperAdmin || p.Role == RoleAdmin
}

// IsProgramRole reports whether the principal is a program member
// (participant or mentor) rather than staff.
func (p Principal) IsProgramRole() bool {
	return p.Role == RoleMentor || p.Role == RoleParticipant
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
