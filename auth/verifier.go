package auth

import (
	"fmt"
	"strings"

	"vibehive/domain"
	"vibehive/errors"
)

// Verifier binds an announced participant identity to a bearer token.
// A Verifier without secret trusts whatever identity it is handed.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Identify returns the participant a token stands for.
func (v *Verifier) Identify(token string) (domain.ParticipantID, error) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "Bearer ")
	if token == "" {
		return "", fmt.Errorf("%w: token is missing", errors.ErrUnauthenticated)
	}
	claims, err := ValidateToken(v.secret, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("%w: token carries no user_id", errors.ErrUnauthenticated)
	}
	return domain.ParticipantID(claims.UserID), nil
}

// Bind checks that token allows acting as announced.
func (v *Verifier) Bind(token string, announced domain.ParticipantID) error {
	if !v.Enabled() {
		return nil
	}
	identity, err := v.Identify(token)
	if err != nil {
		return err
	}
	if identity != announced {
		return fmt.Errorf("%w: token is for %q, not %q", errors.ErrIdentityMismatch, identity, announced)
	}
	return nil
}
