package models

import "time"

// RedirectRule binds a tracking domain (and optionally a partner) to an offer
// Higher Priority wins, then higher Weight, then the earliest rule
type RedirectRule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DomainID  uint      `gorm:"not null;index:idx_redirect_rules_domain_id" json:"domain_id"`
	PartnerID *uint     `gorm:"index:idx_redirect_rules_partner_id" json:"partner_id,omitempty"`
	OfferID   uint      `gorm:"not null;index:idx_redirect_rules_offer_id" json:"offer_id"`
	Priority  int       `gorm:"not null;default:0" json:"priority"`
	Weight    int       `gorm:"not null;default:0" json:"weight"`
	IsPaused  *bool     `gorm:"default:false" json:"is_paused"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for RedirectRule
func (RedirectRule) TableName() string { return "redirect_rules" }

// RoutingTables is a consistent read of everything the redirect engine routes on
type RoutingTables struct {
	Domains  []*TrackingDomain
	Partners []*Partner
	Offers   []*Offer
	Rules    []*RedirectRule
}
