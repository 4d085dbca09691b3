package shared

import "testing"

func TestGetPrincipalType(t *testing.T) {
	tests := []struct {
		member string
		want   string
	}{
		{"allUsers", PrincipalTypePublic},
		{"allAuthenticatedUsers", PrincipalTypeAllAuthenticated},
		{"user:alice@example.edu", PrincipalTypeUser},
		{"serviceAccount:sa@proj.iam.gserviceaccount.com", PrincipalTypeServiceAccount},
		{"group:devs@example.edu", PrincipalTypeGroup},
		{"domain:example.edu", PrincipalTypeDomain},
		{"deleted:user:gone@example.edu?uid=123", PrincipalTypeDeleted},
		{"something-else", PrincipalTypeUnknown},
	}

	for _, tt := range tests {
		if got := GetPrincipalType(tt.member); got != tt.want {
			t.Errorf("GetPrincipalType(%q) = %q, want %q", tt.member, got, tt.want)
		}
	}
}

func TestExtractPrincipalEmail(t *testing.T) {
	tests := []struct {
		member string
		want   string
	}{
		{"user:alice@example.edu", "alice@example.edu"},
		{"serviceAccount:sa@proj.iam.gserviceaccount.com", "sa@proj.iam.gserviceaccount.com"},
		{"allUsers", "allUsers"},
	}

	for _, tt := range tests {
		if got := ExtractPrincipalEmail(tt.member); got != tt.want {
			t.Errorf("ExtractPrincipalEmail(%q) = %q, want %q", tt.member, got, tt.want)
		}
	}
}

func TestIsElevatedRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"roles/owner", true},
		{"roles/editor", true},
		{"roles/compute.admin", true},
		{"roles/storage.objectAdmin", true},
		{"roles/viewer", false},
		{"roles/storage.objectViewer", false},
		{"roles/monitoring.metricWriter", false},
	}

	for _, tt := range tests {
		if got := IsElevatedRole(tt.role); got != tt.want {
			t.Errorf("IsElevatedRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestIsPublicCIDR(t *testing.T) {
	tests := []struct {
		cidr string
		want bool
	}{
		{"0.0.0.0/0", true},
		{"::/0", true},
		{"8.8.8.0/24", true},
		{"10.0.0.0/8", false},
		{"172.16.5.0/24", false},
		{"192.168.1.1", false},
		{"35.235.240.0/20", true}, // IAP range is still public space
		{"not-a-cidr", true},
	}

	for _, tt := range tests {
		if got := IsPublicCIDR(tt.cidr); got != tt.want {
			t.Errorf("IsPublicCIDR(%q) = %v, want %v", tt.cidr, got, tt.want)
		}
	}
}

func TestHasPublicCIDR(t *testing.T) {
	if HasPublicCIDR([]string{"10.0.0.0/8", "192.168.0.0/16"}) {
		t.Error("all-private list reported public")
	}
	if !HasPublicCIDR([]string{"10.0.0.0/8", "0.0.0.0/0"}) {
		t.Error("list with 0.0.0.0/0 not reported public")
	}
	if HasPublicCIDR(nil) {
		t.Error("empty list reported public")
	}
}

func TestFormatList(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		maxItems int
		want     string
	}{
		{"empty", nil, 3, "-"},
		{"under limit", []string{"a", "b"}, 3, "a, b"},
		{"over limit", []string{"a", "b", "c", "d", "e"}, 3, "a, b, c (+2 more)"},
		{"no limit", []string{"a", "b", "c", "d"}, 0, "a, b, c, d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatList(tt.items, tt.maxItems); got != tt.want {
				t.Errorf("FormatList = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatRoleShort(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"roles/owner", "owner"},
		{"roles/storage.admin", "storage.admin"},
		{"projects/my-project/roles/customRole", "customRole"},
		{"organizations/123/roles/orgRole", "orgRole"},
		{"weird-role", "weird-role"},
	}

	for _, tt := range tests {
		if got := FormatRoleShort(tt.role); got != tt.want {
			t.Errorf("FormatRoleShort(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestExtractResourceName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"projects/p/zones/us-central1-a/machineTypes/e2-medium", "e2-medium"},
		{"bare-name", "bare-name"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractResourceName(tt.path); got != tt.want {
			t.Errorf("ExtractResourceName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
