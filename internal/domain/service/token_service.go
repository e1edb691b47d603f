package service

// ResetToken is a freshly issued password-reset secret.
type ResetToken struct {
	Token string // sent to the user inside the reset link
	Hash  string // persisted by the credential store
}

// ResetTokenService issues and hashes single-use password reset tokens.
type ResetTokenService interface {
	// Generate creates a new random token and its storage hash.
	Generate() (*ResetToken, error)

	// Hash returns the storage hash for a token received from a reset link.
	Hash(token string) string
}
