package remoteauth

import (
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
)

// portalClaims are the ID token claims the portal reads
type portalClaims struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	PortalRole string `json:"portal_role"`
	PlanStatus string `json:"plan_status"`
}

func sessionFromToken(idToken *oidc.IDToken) (*sessions.Session, error) {
	var claims portalClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	identifier := claims.Email
	if identifier == "" {
		identifier = claims.Sub
	}

	return &sessions.Session{
		Role:          clampRole(identifier, claims.PortalRole),
		Source:        sessions.SourceRemote,
		Identifier:    identifier,
		EstablishedAt: idToken.IssuedAt.UTC(),
		Plan:          parsePlan(claims.PlanStatus),
	}, nil
}

// clampRole limits remote sessions to the non-administrative roles.
// Elevated roles only come from local credentials.
func clampRole(identifier, claim string) roles.RoleType {
	role, err := roles.ParseRole(claim)
	switch {
	case err == nil && !role.IsAdministrative():
		return role
	case claim == "":
		return roles.RoleSubscriber
	default:
		log.Warn().Str("identifier", identifier).Str("portal_role", claim).Msg("remote role not accepted, using subscriber")
		return roles.RoleSubscriber
	}
}

func parsePlan(status string) sessions.PlanStatus {
	switch sessions.PlanStatus(status) {
	case sessions.PlanActive:
		return sessions.PlanActive
	case sessions.PlanInactive:
		return sessions.PlanInactive
	default:
		return sessions.PlanNone
	}
}
