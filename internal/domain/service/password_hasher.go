// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher hashes new passwords and verifies stored hashes, including
// hashes written by older schemes.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash to see if they match.
	Check(password, hash string) bool

	// NeedsRehash reports whether hash was produced by a scheme or cost that
	// should be replaced on the next successful login.
	NeedsRehash(hash string) bool
}
