// Package models contains the GORM models of the routing and attribution tables
package models

import "time"

// TrackingDomain is a hostname partners point their links at
// Only active domains are routable
type TrackingDomain struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Hostname  string    `gorm:"size:255;not null;uniqueIndex:uk_tracking_domains_hostname" json:"hostname"`
	IsActive  *bool     `gorm:"default:true;index:idx_tracking_domains_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for TrackingDomain
func (TrackingDomain) TableName() string { return "tracking_domains" }
