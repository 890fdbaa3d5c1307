package models

import "time"

// Impression counts one pixel fire for a partner
type Impression struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PartnerID     uint      `gorm:"not null;index:idx_impressions_partner_id" json:"partner_id"`
	CreativeID    *uint     `gorm:"index:idx_impressions_creative_id" json:"creative_id,omitempty"`
	IPHash        *string   `gorm:"size:64" json:"ip_hash,omitempty"`
	UserAgentHash *string   `gorm:"size:64" json:"user_agent_hash,omitempty"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_impressions_created_at" json:"created_at"`
}

// TableName returns the table name for Impression
func (Impression) TableName() string { return "impressions" }
