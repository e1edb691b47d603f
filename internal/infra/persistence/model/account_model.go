// Package model holds the gorm persistence models of the credential store.
package model

import "time"

// AccountModel mirrors the 'accounts' table created by the embedded migrations.
type AccountModel struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	Username         string     `gorm:"type:varchar(255);not null;uniqueIndex:uq_accounts_username"`
	FirstName        string     `gorm:"type:varchar(255);not null"`
	LastName         string     `gorm:"type:varchar(255);not null"`
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex:uq_accounts_email"`
	DateOfBirth      time.Time  `gorm:"column:dob;type:date;not null;index:idx_accounts_dob"`
	PasswordHash     string     `gorm:"type:varchar(255);not null"`
	ResetToken       *string    `gorm:"column:reset_token;type:varchar(64);uniqueIndex:uq_accounts_reset_token"`
	ResetTokenExpiry *time.Time `gorm:"column:reset_token_expiry"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}
