package models

import "time"

// Offer is a vendor destination; HoplinkURL is where matched clicks land
type Offer struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	VendorID   string    `gorm:"size:128;not null;index:idx_offers_vendor_id" json:"vendor_id"`
	HoplinkURL string    `gorm:"type:text;not null" json:"hoplink_url"`
	IsActive   *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for Offer
func (Offer) TableName() string { return "offers" }
