// Package auth derives the current-user identity from the portal bearer token.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Keta432/medichat/internal/models"
)

// Identity errors.
var (
	ErrEmptyToken   = errors.New("bearer token is empty")
	ErrMissingSub   = errors.New("token carries no subject claim")
	ErrTokenExpired = errors.New("bearer token is expired")
)

// Identity is the current portal user as described by the bearer token.
type Identity struct {
	// UserID is the portal user id (the token subject).
	UserID string

	// Name is the display name.
	Name string

	// Email is the account email.
	Email string

	// Role is the portal role (admin, doctor, staff).
	Role models.Role

	// Hospital is the organizational affiliation, empty if unassigned.
	Hospital string
}

// Affiliated reports whether the user has a hospital assignment.
// Unaffiliated users may only message administrators.
func (i Identity) Affiliated() bool {
	return strings.TrimSpace(i.Hospital) != ""
}

// Participant converts the identity into a message participant.
func (i Identity) Participant() models.Participant {
	return models.Participant{
		ID:       i.UserID,
		Name:     i.Name,
		Email:    i.Email,
		Role:     i.Role,
		Hospital: i.Hospital,
	}
}

// claims is the portal token payload. Verification is the backend's job;
// the client decodes the payload only to learn who it is acting as.
type claims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Hospital string `json:"hospital"`
	jwt.RegisteredClaims
}

// FromToken decodes the bearer token's claims into an Identity without
// verifying the signature. The server rejects forged tokens on every
// request; locally the claims are used only for display and for the
// affiliation-based contact filter.
func FromToken(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, ErrEmptyToken
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	var payload claims
	if _, _, err := parser.ParseUnverified(token, &payload); err != nil {
		return Identity{}, fmt.Errorf("failed to decode token: %w", err)
	}

	if payload.Subject == "" {
		return Identity{}, ErrMissingSub
	}

	role := models.Role(strings.ToLower(strings.TrimSpace(payload.Role)))
	if role == "" {
		role = models.RoleStaff
	}

	return Identity{
		UserID:   payload.Subject,
		Name:     payload.Name,
		Email:    payload.Email,
		Role:     role,
		Hospital: strings.TrimSpace(payload.Hospital),
	}, nil
}
