package gcpinternal

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserResolver maps account emails to human display names using the local
// users.json cache. The cache is maintained out of band (directory sync
// exports); scans only read it.
type UserResolver struct {
	names map[string]string
}

// NewUserResolver loads ~/.config/skywalker/users.json. A missing or
// unreadable file yields an empty resolver, never an error.
func NewUserResolver() *UserResolver {
	r := &UserResolver{names: make(map[string]string)}

	configDir, err := ConfigDirectory()
	if err != nil {
		return r
	}

	data, err := os.ReadFile(filepath.Join(configDir, "users.json"))
	if err != nil {
		return r
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err == nil {
		r.names = names
	}
	return r
}

// StaticUserResolver wraps an in-memory name map, bypassing the on-disk
// cache.
func StaticUserResolver(names map[string]string) *UserResolver {
	if names == nil {
		names = make(map[string]string)
	}
	return &UserResolver{names: names}
}

// DisplayName returns the cached display name for an email, or "" when the
// email is unknown.
func (r *UserResolver) DisplayName(email string) string {
	return r.names[email]
}

// Size returns the number of cached identities.
func (r *UserResolver) Size() int {
	return len(r.names)
}
