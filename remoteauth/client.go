package remoteauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/portal-guard/internal/config"
	"golang.org/x/oauth2"
)

// Verifier checks a raw ID token. *oidc.IDTokenVerifier implements it.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Client is the shared connection to the hosted auth service. One Client
// serves every portal context's Provider.
type Client struct {
	verifier Verifier
	oauth2   *oauth2.Config
}

// NewClient discovers the issuer's endpoints and keys. It returns nil, nil
// when no issuer is configured, which disables the remote provider.
func NewClient(ctx context.Context, cfg config.RemoteConfig) (*Client, error) {
	issuer := cfg.GetOIDCIssuer()
	if issuer == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return NewClientWith(
		provider.Verifier(&oidc.Config{ClientID: cfg.GetOIDCClientID()}),
		&oauth2.Config{
			ClientID:     cfg.GetOIDCClientID(),
			ClientSecret: cfg.GetOIDCClientSecret(),
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.GetOIDCScopes(),
		},
	), nil
}

// NewClientWith builds a Client from an explicit verifier and OAuth2 config
func NewClientWith(verifier Verifier, oauthConfig *oauth2.Config) *Client {
	return &Client{
		verifier: verifier,
		oauth2:   oauthConfig,
	}
}

// passwordGrant exchanges credentials for a token and returns its raw ID token
func (c *Client) passwordGrant(ctx context.Context, identifier, secret string) (*oauth2.Token, string, error) {
	token, err := c.oauth2.PasswordCredentialsToken(ctx, identifier, secret)
	if err != nil {
		return nil, "", err
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", fmt.Errorf("no id_token in token response")
	}
	return token, rawIDToken, nil
}

// refresh uses a stored refresh token to obtain a fresh ID token
func (c *Client) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, string, error) {
	token, err := c.oauth2.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, "", err
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", fmt.Errorf("no id_token in refresh response")
	}
	return token, rawIDToken, nil
}
