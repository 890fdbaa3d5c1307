package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/hopgate/models"
	"github.com/amirphl/hopgate/utils"
)

// RoutingFixture builds routing tables for tests
type RoutingFixture struct {
	tables models.RoutingTables
	clock  time.Time
}

func NewRoutingFixture() *RoutingFixture {
	return &RoutingFixture{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Tables returns the tables built so far
func (f *RoutingFixture) Tables() *models.RoutingTables {
	t := f.tables
	return &t
}

func (f *RoutingFixture) Domain(id uint, hostname string, active bool) *RoutingFixture {
	f.tables.Domains = append(f.tables.Domains, &models.TrackingDomain{
		ID:       id,
		Hostname: hostname,
		IsActive: utils.ToPtr(active),
	})
	return f
}

func (f *RoutingFixture) Partner(id uint, code, status string, active bool) *RoutingFixture {
	f.tables.Partners = append(f.tables.Partners, &models.Partner{
		ID:             id,
		PublicCode:     code,
		DisplayName:    "Partner " + code,
		IsActive:       utils.ToPtr(active),
		ApprovalStatus: status,
	})
	return f
}

// ApprovedPartner adds an active, approved partner
func (f *RoutingFixture) ApprovedPartner(id uint, code string) *RoutingFixture {
	return f.Partner(id, code, models.PartnerStatusApproved, true)
}

func (f *RoutingFixture) Offer(id uint, hoplink string, active bool) *RoutingFixture {
	f.tables.Offers = append(f.tables.Offers, &models.Offer{
		ID:         id,
		Name:       fmt.Sprintf("Offer %d", id),
		VendorID:   fmt.Sprintf("vendor-%d", id),
		HoplinkURL: hoplink,
		IsActive:   utils.ToPtr(active),
	})
	return f
}

// Rule adds an unpaused, partner-less rule; rules get increasing creation times
func (f *RoutingFixture) Rule(id, domainID, offerID uint, priority, weight int) *RoutingFixture {
	return f.AddRule(&models.RedirectRule{
		ID:       id,
		DomainID: domainID,
		OfferID:  offerID,
		Priority: priority,
		Weight:   weight,
	})
}

// AddRule adds rule as given, filling IsPaused and CreatedAt when unset
func (f *RoutingFixture) AddRule(rule *models.RedirectRule) *RoutingFixture {
	if rule.IsPaused == nil {
		rule.IsPaused = utils.ToPtr(false)
	}
	if rule.CreatedAt.IsZero() {
		f.clock = f.clock.Add(time.Minute)
		rule.CreatedAt = f.clock
	}
	f.tables.Rules = append(f.tables.Rules, rule)
	return f
}

// ExampleRoutingTables is the offers.example.com setup: R1 (priority 10) routes to O1,
// R2 (priority 5) routes to O2; XYZ is approved and ABC123 is pending.
func ExampleRoutingTables() *models.RoutingTables {
	return NewRoutingFixture().
		Domain(1, "offers.example.com", true).
		Domain(2, "paused.example.com", true).
		Domain(3, "retired.example.com", false).
		ApprovedPartner(10, "XYZ").
		Partner(11, "ABC123", models.PartnerStatusPending, true).
		Offer(100, "https://vendor-one.example.net/hop?aff=1", true).
		Offer(200, "https://vendor-two.example.net/hop", true).
		Offer(300, "https://vendor-three.example.net/hop", false).
		Rule(1, 1, 100, 10, 0).
		Rule(2, 1, 200, 5, 0).
		AddRule(&models.RedirectRule{ID: 3, DomainID: 2, OfferID: 100, Priority: 10, IsPaused: utils.ToPtr(true)}).
		Rule(4, 2, 300, 5, 0).
		Tables()
}
