package identity

import "strings"

// Role is a bitmask of coarse permissions carried into the token's
// groups claim. Values are stable; never renumber.
type Role uint32

const (
	RoleUser Role = 1 << iota
	RoleAdmin
	RoleOperator
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleUser, "user"},
	{RoleAdmin, "admin"},
	{RoleOperator, "operator"},
}

// Has reports whether r contains every bit of want.
func (r Role) Has(want Role) bool { return r&want == want }

// Names decodes the mask into its set of group names, in declaration
// order. Unknown bits are ignored.
func (r Role) Names() []string {
	out := make([]string, 0, len(roleNames))
	for _, rn := range roleNames {
		if r.Has(rn.role) {
			out = append(out, rn.name)
		}
	}
	return out
}

// ParseRole maps a single group name back to its bit.
func ParseRole(name string) (Role, bool) {
	for _, rn := range roleNames {
		if rn.name == name {
			return rn.role, true
		}
	}
	return 0, false
}

// ParseRoles folds a list of names into a mask, skipping unknowns.
func ParseRoles(names []string) Role {
	var r Role
	for _, n := range names {
		if bit, ok := ParseRole(strings.TrimSpace(n)); ok {
			r |= bit
		}
	}
	return r
}
