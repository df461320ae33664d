package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/sidechat/pkg/domain"
)

// ErrNoSubject is returned for a token without a usable user id.
var ErrNoSubject = errors.New("token has no user id")

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionFromToken reads the session claims from an access token. The
// signature is checked by the API on every request, not here.
func SessionFromToken(token string) (*domain.Session, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("auth.SessionFromToken: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth.SessionFromToken: %w", ErrNoSubject)
	}
	s := &domain.Session{
		UserID:      userID,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
