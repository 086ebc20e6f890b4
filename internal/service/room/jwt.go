package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharetube/watchroom/internal/domain"
)

// ParseIdentityToken verifies a bearer token issued by the auth service and
// returns the user id carried in its subject.
func (s service) ParseIdentityToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	if domain.IsGuestID(subject) {
		return "", fmt.Errorf("%w: user id uses guest prefix", domain.ErrUnauthenticated)
	}

	return subject, nil
}
