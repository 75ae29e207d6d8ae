package auth

import (
	"errors"
	"time"

	"github.com/dockpilot/management-api/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpiredCredential is returned when a token's expiry has passed
	ErrExpiredCredential = errors.New("credential has expired")
	// ErrMalformedCredential covers bad signatures, wrong algorithms and
	// missing required claims
	ErrMalformedCredential = errors.New("credential is malformed")
)

// Claims carries the registered claims plus the role
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenService issues and verifies signed, time-bound identity tokens.
// The signing secret is loaded once at startup and never mutated.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service with the given secret and TTL
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL returns the configured token lifetime
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue produces a signed token encoding the username and role
func (s *TokenService) Issue(username, role string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: role,
	})

	return token.SignedString(s.secret)
}

// Verify checks the signature, algorithm and expiry of a token and returns
// the identity it asserts. Expiry maps to ErrExpiredCredential; every other
// failure, including missing sub or role claims, maps to
// ErrMalformedCredential.
func (s *TokenService) Verify(tokenString string) (*models.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrMalformedCredential
	}

	if !token.Valid || claims.Subject == "" || claims.Role == "" {
		return nil, ErrMalformedCredential
	}

	return &models.Identity{
		Username: claims.Subject,
		Role:     claims.Role,
	}, nil
}
