// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"stockdash/config"
	"stockdash/internal/domain/service"
)

// legacySHA256Len is the length of a hex encoded unsalted SHA-256 digest.
const legacySHA256Len = sha256.Size * 2

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost         int
	acceptLegacy bool
}

// NewBcryptHasher is the constructor for bcryptHasher with bcrypt.DefaultCost.
// It returns the implementation as a service.PasswordHasher interface.
func NewBcryptHasher() service.PasswordHasher {
	return &bcryptHasher{cost: bcrypt.DefaultCost}
}

// NewBcryptHasherWithCost returns a bcrypt hasher using cost, clamped to bcrypt's valid range.
func NewBcryptHasherWithCost(cost int) service.PasswordHasher {
	return &bcryptHasher{cost: clampCost(cost)}
}

// NewPasswordHasher builds the hasher from the auth config.
func NewPasswordHasher(cfg *config.Config) service.PasswordHasher {
	h := &bcryptHasher{cost: bcrypt.DefaultCost}
	if cfg != nil && cfg.Auth != nil {
		if cfg.Auth.BcryptCost != 0 {
			h.cost = clampCost(cfg.Auth.BcryptCost)
		}
		h.acceptLegacy = cfg.Auth.AcceptLegacySHA256
	}

	return h
}

func clampCost(cost int) int {
	switch {
	case cost < bcrypt.MinCost:
		return bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	default:
		return cost
	}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
// bcrypt automatically handles salt generation.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)

	return string(bytes), err
}

// Check compares a plaintext password with a stored hash. Unsalted SHA-256 hashes
// are only honoured when legacy verification is enabled.
func (h *bcryptHasher) Check(password, hash string) bool {
	if h.acceptLegacy && isLegacySHA256(hash) {
		sum := sha256.Sum256([]byte(password))

		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(hash)) == 1
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	// err is nil if the password and hash match.
	return err == nil
}

// NeedsRehash is true for legacy hashes and for bcrypt hashes with a different cost.
func (h *bcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}

	return cost != h.cost
}

func isLegacySHA256(hash string) bool {
	if len(hash) != legacySHA256Len {
		return false
	}
	_, err := hex.DecodeString(hash)

	return err == nil
}
