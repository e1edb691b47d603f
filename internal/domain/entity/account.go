// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import "time"

// DateLayout is the wire and storage format of a date of birth.
const DateLayout = "2006-01-02"

// Account is the persisted user identity and credential record.
type Account struct {
	ID               uint64     // Store-assigned surrogate key.
	Username         string     // Unique, case-sensitive login name.
	Email            string     // Unique contact address, also accepted as a login identity.
	FirstName        string
	LastName         string
	DateOfBirth      time.Time  // Calendar date at UTC midnight.
	PasswordHash     string     // Salted adaptive hash, never the raw password.
	ResetTokenHash   *string    // SHA-256 of the pending reset token, nil when no reset is pending.
	ResetTokenExpiry *time.Time // Set together with ResetTokenHash.
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPendingReset reports whether a reset token was issued and has not expired at now.
func (a *Account) HasPendingReset(now time.Time) bool {
	return a.ResetTokenHash != nil && a.ResetTokenExpiry != nil && now.Before(*a.ResetTokenExpiry)
}

// Summary returns the non-secret projection of the account.
func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		DateOfBirth: a.DateOfBirth.Format(DateLayout),
		CreatedAt:   a.CreatedAt,
	}
}

// AccountSummary is what profile and admin views expose. It never carries the
// password hash or reset token.
type AccountSummary struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth string    `json:"dateOfBirth"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AccountContact is the result row of a forgot-username lookup.
type AccountContact struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// NormalizeDate truncates t to its calendar date at UTC midnight.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date of birth.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}

	return NormalizeDate(t), nil
}
