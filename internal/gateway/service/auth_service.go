package service

import (
	"errors"
	"fmt"
	"time"

	pkgerrors "codegame/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const defaultJWTSecret = "dev"

// AuthService issues and validates contestant tokens.
type AuthService struct {
	jwtSecret []byte
	jwtIssuer string
	now       func() time.Time
}

func NewAuthService(jwtSecret, jwtIssuer string) *AuthService {
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
	}
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		jwtIssuer: jwtIssuer,
		now:       time.Now,
	}
}

type tokenClaims struct {
	ContestantID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Issue signs a token for contestantID. Tokens live as long as the contest; they carry no expiry.
func (s *AuthService) Issue(contestantID string) (string, error) {
	if contestantID == "" {
		return "", pkgerrors.New(pkgerrors.TokenGenerationFailed).WithMessage("contestant id is empty")
	}
	claims := tokenClaims{
		ContestantID: contestantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  contestantID,
			Issuer:   s.jwtIssuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.TokenGenerationFailed)
	}
	return signed, nil
}

// Authenticate returns the contestant id carried by raw.
func (s *AuthService) Authenticate(raw string) (string, error) {
	if raw == "" {
		return "", pkgerrors.UnauthorizedError("missing token")
	}
	claims, err := s.parseToken(raw)
	if err != nil {
		return "", err
	}
	return claims.ContestantID, nil
}

func (s *AuthService) parseToken(raw string) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, pkgerrors.New(pkgerrors.TokenInvalid).WithMessage("token signature is invalid")
		}
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if s.jwtIssuer != "" && claims.Issuer != s.jwtIssuer {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if claims.ContestantID == "" {
		claims.ContestantID = claims.Subject
	}
	if claims.ContestantID == "" {
		return nil, pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return claims, nil
}
