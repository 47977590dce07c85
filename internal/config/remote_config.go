package config

import "strings"

type RemoteConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCScopes() []string
}

type Remote struct{}

var _ RemoteConfig = Remote{}

// GetOIDCIssuer returns the issuer of the hosted auth service. An empty
// issuer runs the portal with the remote provider disabled.
func (Remote) GetOIDCIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Remote) GetOIDCClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "portal")
}

func (Remote) GetOIDCClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Remote) GetOIDCScopes() []string {
	return strings.Fields(GetEnv("OIDC_SCOPES", "openid email profile offline_access"))
}
