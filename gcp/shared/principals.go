package shared

import "strings"

// Principal type labels for IAM member strings.
const (
	PrincipalTypePublic           = "PUBLIC"
	PrincipalTypeAllAuthenticated = "ALL_AUTHENTICATED"
	PrincipalTypeUser             = "User"
	PrincipalTypeServiceAccount   = "ServiceAccount"
	PrincipalTypeGroup            = "Group"
	PrincipalTypeDomain           = "Domain"
	PrincipalTypeDeleted          = "Deleted"
	PrincipalTypeUnknown          = "Unknown"
)

// GetPrincipalType classifies an IAM member string by its prefix.
//
// Examples:
//   - "allUsers" -> "PUBLIC"
//   - "user:admin@example.edu" -> "User"
//   - "serviceAccount:sa@project.iam.gserviceaccount.com" -> "ServiceAccount"
func GetPrincipalType(member string) string {
	switch {
	case member == "allUsers":
		return PrincipalTypePublic
	case member == "allAuthenticatedUsers":
		return PrincipalTypeAllAuthenticated
	case strings.HasPrefix(member, "user:"):
		return PrincipalTypeUser
	case strings.HasPrefix(member, "serviceAccount:"):
		return PrincipalTypeServiceAccount
	case strings.HasPrefix(member, "group:"):
		return PrincipalTypeGroup
	case strings.HasPrefix(member, "domain:"):
		return PrincipalTypeDomain
	case strings.HasPrefix(member, "deleted:"):
		return PrincipalTypeDeleted
	default:
		return PrincipalTypeUnknown
	}
}

// ExtractPrincipalEmail returns the part after the type prefix, or the
// original string when there is no prefix.
//
// Examples:
//   - "user:admin@example.edu" -> "admin@example.edu"
//   - "allUsers" -> "allUsers"
func ExtractPrincipalEmail(member string) string {
	if idx := strings.Index(member, ":"); idx != -1 {
		return member[idx+1:]
	}
	return member
}

// IsPublicPrincipal reports whether the member grants public access.
func IsPublicPrincipal(member string) bool {
	return member == "allUsers" || member == "allAuthenticatedUsers"
}

// IsElevatedRole reports whether a role grants broad write or admin
// control: the owner and editor basic roles, and predefined admin roles
// such as "roles/compute.admin" or "roles/storage.objectAdmin".
func IsElevatedRole(role string) bool {
	switch role {
	case "roles/owner", "roles/editor":
		return true
	}
	return strings.HasSuffix(role, ".admin") || strings.HasSuffix(role, "Admin")
}
