// File: internal/domain/role.go
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a message. The set is closed; unknown roles are
// rejected at the boundary instead of being passed through to the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleData      Role = "data"
	RoleTool      Role = "tool"
)

// ErrUnknownRole is returned by ParseRole for values outside the closed set.
type ErrUnknownRole struct {
	Value string
}

func (e *ErrUnknownRole) Error() string {
	return fmt.Sprintf("unknown message role %q", e.Value)
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", &ErrUnknownRole{Value: s}
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleData, RoleTool:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
