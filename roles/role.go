package roles

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/portal-guard/internal/errors"
)

// RoleType represents either a session role or a route requirement
type RoleType string

const (
	// Administrative roles, only granted by local credentials
	RoleMaster       RoleType = "master"        // Unrestricted, including master-only areas
	RoleGeneralAdmin RoleType = "general_admin" // Whole back-office except master-only areas
	RoleContentAdmin RoleType = "content_admin" // Editorial back-office

	// Portal roles, granted by the remote identity provider
	RoleFranchisee RoleType = "franchisee"
	RoleSubscriber RoleType = "subscriber"

	// RequireAdmin is a route requirement meaning "any administrative role".
	// It is never held by a session.
	RequireAdmin RoleType = "admin"
)

var sessionRoles = []RoleType{RoleMaster, RoleGeneralAdmin, RoleContentAdmin, RoleFranchisee, RoleSubscriber}

// SessionRoles returns the closed set of roles a session may hold
func SessionRoles() []RoleType {
	return append([]RoleType(nil), sessionRoles...)
}

// ParseRole validates a role read from configuration or token claims
func ParseRole(s string) (RoleType, error) {
	r := RoleType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range sessionRoles {
		if r == known {
			return r, nil
		}
	}
	return "", errors.Wrapf(errors.ErrInvalidRole, "[roles.ParseRole] %q", s)
}

// ParseRequirement validates a role declared by a route, which may also be RequireAdmin
func ParseRequirement(s string) (RoleType, error) {
	if RoleType(strings.ToLower(strings.TrimSpace(s))) == RequireAdmin {
		return RequireAdmin, nil
	}
	return ParseRole(s)
}

// IsAdministrative reports whether the role is one of the back-office roles
func (r RoleType) IsAdministrative() bool {
	return r == RoleMaster || r == RoleGeneralAdmin || r == RoleContentAdmin
}

// isGeneralAdminEquivalent reports whether the role passes the coarse check on
// admin, subscriber and franchisee routes.
func (r RoleType) isGeneralAdminEquivalent() bool {
	return r == RoleGeneralAdmin || r == RoleContentAdmin
}

func (r RoleType) String() string {
	return string(r)
}

// Outcome is the result of a policy evaluation
type Outcome int

const (
	Deny Outcome = iota
	Allow
	// ConditionalAllow is an Allow that still depends on an active plan
	ConditionalAllow
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case ConditionalAllow:
		return "conditional_allow"
	case Deny:
		return "deny"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}
