package models

import (
	"time"

	"github.com/google/uuid"
)

// Traffic tiers accepted on partner applications
const (
	TrafficTierUnder1K  = "under_1k"
	TrafficTier1KTo10K  = "1k_10k"
	TrafficTier10KTo50K = "10k_50k"
	TrafficTierOver50K  = "over_50k"
)

// PartnerApplication is an onboarding request awaiting review
// Status follows the partner approval statuses
type PartnerApplication struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_partner_applications_uuid" json:"uuid"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Email       string    `gorm:"size:255;not null;index:idx_partner_applications_email" json:"email"`
	BlogURL     string    `gorm:"type:text;not null" json:"blog_url"`
	TrafficTier string    `gorm:"size:20;not null" json:"traffic_tier"`
	Notes       *string   `gorm:"type:text" json:"notes,omitempty"`
	Consent     bool      `gorm:"not null;default:false" json:"consent"`
	Status      string    `gorm:"size:20;not null;default:'pending';index:idx_partner_applications_status" json:"status"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_partner_applications_created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for PartnerApplication
func (PartnerApplication) TableName() string { return "partner_applications" }

// PartnerApplicationFilter provides filter fields for repository queries
type PartnerApplicationFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
