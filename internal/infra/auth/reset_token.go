package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"stockdash/internal/domain/service"

	"github.com/pkg/errors"
)

// DefaultResetTokenBytes is the entropy of a reset token (256 bits).
const DefaultResetTokenBytes = 32

type resetTokenService struct {
	byteLength int
}

// NewResetTokenService returns a generator of URL-safe random reset tokens.
func NewResetTokenService() service.ResetTokenService {
	return &resetTokenService{byteLength: DefaultResetTokenBytes}
}

// Generate creates a new token; only its SHA-256 is meant to be stored.
func (s *resetTokenService) Generate() (*service.ResetToken, error) {
	buf := make([]byte, s.byteLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "failed to read random bytes")
	}

	token := base64.RawURLEncoding.EncodeToString(buf)

	return &service.ResetToken{
		Token: token,
		Hash:  s.Hash(token),
	}, nil
}

// Hash returns the hex SHA-256 of token.
func (s *resetTokenService) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
