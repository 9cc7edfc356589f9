package auth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// expiryDelta matches the early-expiry window of golang.org/x/oauth2.
const expiryDelta = 10 * time.Second

// Credential is the persisted OAuth2 token material of the mailbox owner.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`

	// IDToken is the raw identity token JWT as returned by the provider.
	IDToken string `json:"id_token,omitempty"`

	// Email is the email claim of IDToken.
	Email string `json:"email,omitempty"`

	Scopes []string `json:"scopes,omitempty"`
}

// Valid reports whether the access token can be used at now.
func (c Credential) Valid(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.Expiry.IsZero() || now.Before(c.Expiry.Add(-expiryDelta))
}

// Refreshable reports whether a refresh token is present.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}

// Terminal reports whether the credential can neither be used nor
// refreshed.
func (c Credential) Terminal(now time.Time) bool {
	return !c.Valid(now) && !c.Refreshable()
}

// sameGrant reports whether c and o carry the same tokens and expiry.
func (c Credential) sameGrant(o Credential) bool {
	return c.AccessToken == o.AccessToken &&
		c.RefreshToken == o.RefreshToken &&
		c.Expiry.Equal(o.Expiry)
}

// Token converts the credential to an oauth2 token.
func (c Credential) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
	if c.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": c.IDToken})
	}
	return tok
}

// credentialFromToken builds a Credential from a token endpoint response.
// Fields the response leaves out (refresh token, identity token, scopes on
// refresh) are carried over from prev.
func credentialFromToken(tok *oauth2.Token, prev *Credential) Credential {
	c := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		c.IDToken = raw
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		c.Scopes = strings.Fields(scope)
	}

	if prev != nil {
		if c.RefreshToken == "" {
			c.RefreshToken = prev.RefreshToken
		}
		if c.IDToken == "" {
			c.IDToken = prev.IDToken
			c.Email = prev.Email
		}
		if len(c.Scopes) == 0 {
			c.Scopes = prev.Scopes
		}
	}

	if c.Email == "" && c.IDToken != "" {
		c.Email = emailClaim(c.IDToken)
	}
	return c
}

// emailClaim extracts the email claim from an identity token. The
// signature is not checked.
func emailClaim(rawIDToken string) string {
	payload, err := idtoken.ParsePayload(rawIDToken)
	if err != nil {
		return ""
	}
	email, _ := payload.Claims["email"].(string)
	return email
}
