package roles

import "strings"

// MatchType selects how an override pattern is compared to a route path
type MatchType string

const (
	MatchPrefix   MatchType = "prefix"
	MatchContains MatchType = "contains"
)

// Override reserves every route path matching Pattern for a single role
type Override struct {
	Pattern  string
	Match    MatchType
	Reserved RoleType
}

func (o Override) matches(path string) bool {
	switch o.Match {
	case MatchPrefix:
		return strings.HasPrefix(path, o.Pattern)
	case MatchContains:
		return strings.Contains(path, o.Pattern)
	}
	return false
}

// DefaultOverrides reserves franchise management, team and permissions,
// AI administration and subscriber-account management for master.
func DefaultOverrides() []Override {
	return []Override{
		{Pattern: "/franquias", Match: MatchContains, Reserved: RoleMaster},
		{Pattern: "/equipe", Match: MatchContains, Reserved: RoleMaster},
		{Pattern: "/admin/ai", Match: MatchPrefix, Reserved: RoleMaster},
		{Pattern: "/assinantes", Match: MatchContains, Reserved: RoleMaster},
	}
}

// Requirement is what a route declares about who may render it
type Requirement struct {
	Path         string
	RequiredRole RoleType
	PlanRequired bool
}

// Policy evaluates session roles against route requirements
type Policy struct {
	overrides []Override
}

// NewPolicy creates a policy with the given override table. Overrides are
// evaluated in order after the coarse role check.
func NewPolicy(overrides ...Override) *Policy {
	return &Policy{overrides: append([]Override(nil), overrides...)}
}

// DefaultPolicy returns the policy with DefaultOverrides
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultOverrides()...)
}

// Evaluate decides whether a session holding role may render the route
func (p *Policy) Evaluate(role RoleType, req Requirement) Outcome {
	if role == RoleMaster {
		return Allow
	}

	if !coarseAllowed(role, req.RequiredRole) {
		return Deny
	}

	if reserved, ok := p.reservedFor(req.Path); ok && reserved != role {
		return Deny
	}

	if req.PlanRequired && !role.IsAdministrative() {
		return ConditionalAllow
	}
	return Allow
}

// Reserved returns the role a path is reserved for, if any
func (p *Policy) Reserved(path string) (RoleType, bool) {
	return p.reservedFor(path)
}

func (p *Policy) reservedFor(path string) (RoleType, bool) {
	for _, o := range p.overrides {
		if o.matches(path) {
			return o.Reserved, true
		}
	}
	return "", false
}

func coarseAllowed(role, required RoleType) bool {
	if role == required {
		return true
	}
	if role.isGeneralAdminEquivalent() {
		switch required {
		case RequireAdmin, RoleSubscriber, RoleFranchisee:
			return true
		}
	}
	return false
}
