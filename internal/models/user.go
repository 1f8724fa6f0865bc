package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is a principal allowed through the guarded field API.
// Token is the attribute carried inside signed bearer tokens.
type User struct {
	ID           string         `json:"id" yaml:"id" gorm:"primaryKey;size:26"`
	Username     string         `json:"username" yaml:"username" gorm:"not null;uniqueIndex" validate:"required,min=3,max=50"`
	Token        string         `json:"-" yaml:"token" gorm:"not null;uniqueIndex"`
	Password     string         `json:"-" yaml:"password" gorm:"-"`
	PasswordHash string         `json:"-" yaml:"-" gorm:"column:password_hash"`
	IsActive     bool           `json:"is_active" yaml:"is_active" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"-"`
	DeletedAt    gorm.DeletedAt `json:"-" yaml:"-" gorm:"index"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns identifiers that were left empty
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = ulid.Make().String()
	}
	if u.Token == "" {
		u.Token = ulid.Make().String()
	}
	return nil
}

// SetPassword stores the bcrypt hash of password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
// Users without a password never match.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
