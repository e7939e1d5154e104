package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Credential is an opaque bearer token mapped to a principal, a quota,
// and a permission set. The plaintext token is never persisted; only
// the salted hash is stored.
type Credential struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string     `json:"name" gorm:"type:varchar(100);not null"`
	KeyHash     string     `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_credentials_key_hash"`
	Principal   string     `json:"principal" gorm:"type:varchar(100);not null;index"`
	GroupID     *string    `json:"group_id,omitempty" gorm:"type:varchar(100)"`
	Permissions StringList `json:"permissions" gorm:"type:text"`
	Quota       int        `json:"quota" gorm:"not null;default:60"`
	Revoked     bool       `json:"revoked" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (c *Credential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// HasPermission reports whether the credential's permission set grants
// the given permission. "*" grants everything.
func (c *Credential) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}
