package models

import (
	"time"

	"github.com/google/uuid"
)

// ClickLog is an immutable attribution record of one dispatched click
// PartnerID and OfferID stay NULL for unmatched clicks
// IPHash and UserAgentHash are fingerprints; NULL means no signal was available
type ClickLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_click_logs_uuid" json:"uuid"`
	DomainID      uint      `gorm:"not null;index:idx_click_logs_domain_id" json:"domain_id"`
	PartnerID     *uint     `gorm:"index:idx_click_logs_partner_id" json:"partner_id,omitempty"`
	OfferID       *uint     `gorm:"index:idx_click_logs_offer_id" json:"offer_id,omitempty"`
	RuleID        *uint     `json:"rule_id,omitempty"`
	IPHash        *string   `gorm:"size:64;index:idx_click_logs_ip_hash" json:"ip_hash,omitempty"`
	UserAgentHash *string   `gorm:"size:64" json:"user_agent_hash,omitempty"`
	Referer       *string   `gorm:"type:text" json:"referer,omitempty"`
	RedirectURL   string    `gorm:"type:text;not null" json:"redirect_url"`
	CreatedAt     time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_click_logs_created_at" json:"created_at"`
}

// TableName returns the table name for ClickLog
func (ClickLog) TableName() string { return "click_logs" }
