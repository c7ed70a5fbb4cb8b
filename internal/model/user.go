package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered member of the directory.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	FirstName string    `json:"firstName" gorm:"size:50;not null" validate:"required,min=1,max=50"`
	LastName  string    `json:"lastName" gorm:"size:50;not null" validate:"required,min=1,max=50"`
	Email     string    `json:"email" gorm:"size:255;not null;index" validate:"required,useremail"`
	Username  string    `json:"username" gorm:"size:30;not null;uniqueIndex" validate:"required,min=3,max=30,usernamechars"`
	Password  string    `json:"-" gorm:"size:255;not null" validate:"required,min=6"` // bcrypt hash once persisted
	Website   string    `json:"website,omitempty" gorm:"size:2048"`
	Created   time.Time `json:"created" gorm:"column:created;not null;<-:create"`
}

// NormalizeWebsite prefixes a non-empty url with http:// unless it already
// starts with http:// or https://.
func NormalizeWebsite(url string) string {
	if url == "" {
		return url
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "http://" + url
}

// Normalize trims text fields, lowercases email and username and normalizes the website.
func (u *User) Normalize() {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Website = NormalizeWebsite(strings.TrimSpace(u.Website))
}

// FullName joins first and last name with a single space.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SetFullName splits name on spaces: the first token becomes the first name
// and the remaining tokens, joined with a space, the last name.
func (u *User) SetFullName(name string) {
	parts := strings.Split(name, " ")
	u.FirstName = parts[0]
	u.LastName = strings.Join(parts[1:], " ")
}

// ApplyDefaults assigns an id and the creation time when they are missing.
func (u *User) ApplyDefaults(now time.Time) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Created.IsZero() {
		u.Created = now
	}
}

// BeforeCreate sets UUID and creation time before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ApplyDefaults(time.Now())
	return nil
}

// BeforeSave normalizes fields on every create and update.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Normalize()
	return nil
}

// AfterFind re-applies website normalization to rows written before it existed.
func (u *User) AfterFind(tx *gorm.DB) error {
	u.Website = NormalizeWebsite(u.Website)
	return nil
}

type userFields User

// MarshalJSON includes the normalized website and the derived fullName.
func (u User) MarshalJSON() ([]byte, error) {
	fields := userFields(u)
	fields.Website = NormalizeWebsite(u.Website)
	return json.Marshal(struct {
		userFields
		FullName string `json:"fullName"`
	}{
		userFields: fields,
		FullName:   u.FullName(),
	})
}
