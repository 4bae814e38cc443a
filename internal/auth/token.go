package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// PortalClaims is the payload of a student portal token. The identity
// is the enrollment number; roster context is looked up separately so
// a token never carries stale grade/section data.
type PortalClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// StaffClaims is the payload of a staff token used by the lecture
// channel and the REST surface.
type StaffClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and verifies both token shapes with a shared HMAC
// secret. HS256 is enough for a single-service backend; switch to
// RS256 if verification ever moves to another service.
type Service struct {
	secret string
}

func NewService(secret string) *Service {
	return &Service{secret: secret}
}

func (s *Service) GeneratePortalToken(identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PortalClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "classhub",
		},
	}
	return s.sign(claims)
}

func (s *Service) GenerateStaffToken(userID uuid.UUID, role, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := StaffClaims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "classhub",
		},
	}
	return s.sign(claims)
}

// ResolveIdentity verifies a portal token and returns the enrollment
// identity it represents. Any failure means the handshake is refused.
func (s *Service) ResolveIdentity(tokenString string) (string, error) {
	var claims PortalClaims
	if err := s.parse(tokenString, &claims); err != nil {
		return "", err
	}
	if claims.Identity == "" {
		return "", ErrInvalidToken
	}
	return claims.Identity, nil
}

// ResolveRole verifies a staff token and returns its claims.
func (s *Service) ResolveRole(tokenString string) (*StaffClaims, error) {
	var claims StaffClaims
	if err := s.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (s *Service) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			// Reject anything but HMAC before the signature is checked.
			// This closes the algorithm-confusion hole.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.secret), nil
		},
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
