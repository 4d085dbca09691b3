// Package shared holds display and naming helpers used across the audit
// report renderers and service walkers.
package shared

import (
	"fmt"
	"strings"
)

// BoolToYesNo converts a boolean to "Yes" or "No" for table display.
func BoolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// FormatList formats a slice of strings for table display. If the list
// is longer than maxItems it truncates and adds a count.
//
// Examples:
//   - ["a", "b"] -> "a, b"
//   - ["a", "b", "c", "d", "e"] with maxItems=3 -> "a, b, c (+2 more)"
func FormatList(items []string, maxItems int) string {
	if len(items) == 0 {
		return "-"
	}
	if maxItems <= 0 || len(items) <= maxItems {
		return strings.Join(items, ", ")
	}
	shown := strings.Join(items[:maxItems], ", ")
	return fmt.Sprintf("%s (+%d more)", shown, len(items)-maxItems)
}

// FormatCount formats a count with the appropriate singular/plural noun.
func FormatCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// DefaultString returns the value if non-empty, otherwise the default.
func DefaultString(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// ExtractResourceName extracts the last component from a resource path.
// GCP resource names often have format: projects/PROJECT/zones/ZONE/resources/NAME
//
// Examples:
//   - "projects/my-project/zones/us-central1-a/machineTypes/e2-medium" -> "e2-medium"
//   - "my-resource" -> "my-resource"
func ExtractResourceName(fullPath string) string {
	parts := strings.Split(fullPath, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return fullPath
}

// FormatRoleShort shortens a role name for table display.
//
// Examples:
//   - "roles/owner" -> "owner"
//   - "roles/storage.admin" -> "storage.admin"
//   - "projects/my-project/roles/customRole" -> "customRole"
func FormatRoleShort(role string) string {
	if strings.HasPrefix(role, "roles/") {
		return strings.TrimPrefix(role, "roles/")
	}
	parts := strings.Split(role, "/roles/")
	if len(parts) == 2 {
		return parts[1]
	}
	return role
}
