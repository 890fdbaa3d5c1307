package models

import "time"

// Partner approval statuses
const (
	PartnerStatusPending  = "pending"
	PartnerStatusApproved = "approved"
	PartnerStatusRejected = "rejected"
)

// Partner is an approved traffic source
// PublicCode is the stable code embedded in hoplinks and pixels
type Partner struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PublicCode     string    `gorm:"size:64;not null;uniqueIndex:uk_partners_public_code" json:"public_code"`
	DisplayName    string    `gorm:"size:255;not null" json:"display_name"`
	IsActive       *bool     `gorm:"default:true" json:"is_active"`
	ApprovalStatus string    `gorm:"size:20;not null;default:'pending';index:idx_partners_approval_status" json:"approval_status"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Partner
func (Partner) TableName() string { return "partners" }

// IsEligible reports whether the partner may be credited with clicks and impressions
func (p *Partner) IsEligible() bool {
	return p != nil && p.ApprovalStatus == PartnerStatusApproved && p.IsActive != nil && *p.IsActive
}
