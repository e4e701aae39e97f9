// Package auth is the identity boundary: it provisions profiles
// (credentialed or anonymous), issues session tokens and resolves the
// capability-tagged Session the rest of the service switches on.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRoleMismatch       = errors.New("account role does not match this login area")
	ErrCRPRequired        = errors.New("psychologist registration requires a CRP")
	ErrWeakPassword       = errors.New("password must have at least 6 characters")
)

// Service provisions identities against the store.
type Service struct {
	store  store.Store
	tokens *TokenManager
}

// NewService wires the identity provider.
func NewService(st store.Store, tokens *TokenManager) *Service {
	return &Service{store: st, tokens: tokens}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     account.Role
	CRP      string
}

// Register creates a credentialed profile and returns it with a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*account.Profile, string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, "", fmt.Errorf("invalid email address")
	}
	if len(in.Password) < 6 {
		return nil, "", ErrWeakPassword
	}
	if !in.Role.Valid() {
		return nil, "", fmt.Errorf("unknown role %q", in.Role)
	}
	if in.Role == account.RolePsychologist && strings.TrimSpace(in.CRP) == "" {
		return nil, "", ErrCRPRequired
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	profile := &account.Profile{
		Role:         in.Role,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        in.Email,
		CRP:          strings.TrimSpace(in.CRP),
		PasswordHash: hash,
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// Login verifies credentials and checks the account role against the
// login area the caller came through.
func (s *Service) Login(ctx context.Context, email, password string, expected account.Role) (*account.Profile, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, store.ErrProfileNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if checkPassword(password, profile.PasswordHash) != nil {
		return nil, "", ErrInvalidCredentials
	}
	if expected.Valid() && profile.Role != expected {
		return nil, "", ErrRoleMismatch
	}

	token, err := s.tokens.Issue(profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// Anonymous provisions a throwaway patient identity so someone in
// distress can start a chat without an account.
func (s *Service) Anonymous(ctx context.Context) (*account.Profile, string, error) {
	profile := &account.Profile{
		Role:        account.RolePatient,
		IsAnonymous: true,
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(profile)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// Resolve maps a bearer token to the session variant. A token whose role
// claim is unknown resolves to an error, never to a default role.
func (s *Service) Resolve(tokenString string) (account.Session, error) {
	claims, err := s.tokens.Parse(tokenString)
	if err != nil {
		return account.Session{}, err
	}

	switch {
	case claims.Role == account.RolePsychologist:
		return account.Session{UserID: claims.Subject, Kind: account.KindPsychologist}, nil
	case claims.Role == account.RolePatient && claims.Anonymous:
		return account.Session{UserID: claims.Subject, Kind: account.KindAnonymous}, nil
	case claims.Role == account.RolePatient:
		return account.Session{UserID: claims.Subject, Kind: account.KindPatient}, nil
	default:
		return account.Session{}, fmt.Errorf("unresolved role %q", claims.Role)
	}
}
