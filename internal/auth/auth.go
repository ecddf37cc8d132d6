// Package auth resolves an inbound Authorization header to a known
// user, composing the token service with the user store.
package auth

import (
	"errors"
	"strings"

	"github.com/conduit-hq/conduit/internal/model"
	"github.com/conduit-hq/conduit/internal/store"
	"github.com/conduit-hq/conduit/internal/token"
)

var (
	// ErrAuthenticationRequired reports a missing or malformed
	// Authorization header.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrUnauthorized reports a token that fails verification or
	// resolves to no known user.
	ErrUnauthorized = errors.New("unauthorized")
)

// Gate authenticates requests. It holds no state of its own.
type Gate struct {
	tokens *token.Service
	users  store.UserStore
}

func NewGate(tokens *token.Service, users store.UserStore) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Required resolves the header "Authorization: Token <value>" to a
// known user. An absent or malformed header yields
// ErrAuthenticationRequired; a token that fails verification, carries
// no identity, or names an unknown user yields ErrUnauthorized.
func (g *Gate) Required(authorization string) (model.User, error) {
	raw, ok := splitToken(authorization)
	if !ok {
		return model.User{}, ErrAuthenticationRequired
	}
	if !g.tokens.Verify(raw) {
		return model.User{}, ErrUnauthorized
	}
	email, ok := g.tokens.ExtractIdentity(raw)
	if !ok {
		return model.User{}, ErrUnauthorized
	}
	user, err := g.users.GetByEmail(email)
	if err != nil {
		return model.User{}, ErrUnauthorized
	}
	return user, nil
}

// Optional resolves the header like Required but never rejects: any
// failure along the way yields nil, meaning anonymous. The claim is
// read without signature verification, mirroring the read-only
// personalization paths.
func (g *Gate) Optional(authorization string) *model.User {
	raw, ok := splitToken(authorization)
	if !ok {
		return nil
	}
	email, ok := g.tokens.ExtractIdentity(raw)
	if !ok {
		return nil
	}
	user, err := g.users.GetByEmail(email)
	if err != nil {
		return nil
	}
	return &user
}

// splitToken expects exactly two space-separated parts and returns the
// second. The scheme word itself is not inspected.
func splitToken(authorization string) (string, bool) {
	if authorization == "" {
		return "", false
	}
	parts := strings.Split(authorization, " ")
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}
