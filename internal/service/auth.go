package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aidar/team-requests-service/internal/domain"
)

// Claims represents JWT claims issued by the identity provider
type Claims struct {
	Matricula string   `json:"matricula"`
	Campus    string   `json:"campus"`
	Groups    []string `json:"groups"`
	jwt.RegisteredClaims
}

// AuthService handles bearer token validation and token minting for tooling
type AuthService struct {
	jwtSecret string
	jwtExpiry time.Duration
	now       func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		now:       time.Now,
	}
}

// IssueToken signs a token for the given identity
func (s *AuthService) IssueToken(identity domain.Identity) (string, error) {
	now := s.now()

	claims := &Claims{
		Matricula: identity.UserID,
		Campus:    identity.CampusCode,
		Groups:    identity.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the caller identity.
// Tokens without matricula or campus are rejected.
func (s *AuthService) ValidateToken(tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	if claims.Matricula == "" || claims.Campus == "" {
		return nil, domain.ErrInvalidToken
	}

	return &domain.Identity{
		UserID:     claims.Matricula,
		CampusCode: claims.Campus,
		Roles:      claims.Groups,
	}, nil
}
