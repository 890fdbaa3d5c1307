package businessflow

import (
	"github.com/amirphl/hopgate/models"
	"github.com/amirphl/hopgate/utils"
)

// MatchResult is the outcome of rule matching.
// When Matched is false the other fields are nil.
type MatchResult struct {
	Matched bool
	Rule    *models.RedirectRule
	Offer   *models.Offer
	// Partner credited with the click: the rule's bound partner, else the request partner
	Partner *models.Partner
}

// RuleMatcher selects at most one redirect rule for a click.
// Matching is a pure function of the snapshot and the inputs.
type RuleMatcher interface {
	Match(domainID uint, partnerID *uint, offerHint *uint) MatchResult
	MatchSnapshot(snapshot *RuleSnapshot, domainID uint, partnerID *uint, offerHint *uint) MatchResult
}

type RuleMatcherImpl struct {
	index *RuleIndex
}

func NewRuleMatcher(index *RuleIndex) RuleMatcher {
	return &RuleMatcherImpl{index: index}
}

func (m *RuleMatcherImpl) Match(domainID uint, partnerID *uint, offerHint *uint) MatchResult {
	return m.MatchSnapshot(m.index.Snapshot(), domainID, partnerID, offerHint)
}

// MatchSnapshot walks the candidates in selection order and returns the first usable
// rule. Paused rules, rules whose offer is missing or inactive and rules whose bound
// partner is missing or not eligible are skipped. A bound partner is credited even
// when the request names another one.
func (m *RuleMatcherImpl) MatchSnapshot(snapshot *RuleSnapshot, domainID uint, partnerID *uint, offerHint *uint) MatchResult {
	if snapshot == nil {
		return MatchResult{}
	}

	var requestPartner *models.Partner
	if partnerID != nil {
		if p := snapshot.ResolvePartnerByID(*partnerID); p.IsEligible() {
			requestPartner = p
		} else {
			partnerID = nil
		}
	}

	for _, rule := range snapshot.RulesFor(domainID, partnerID, offerHint) {
		if utils.IsTrue(rule.IsPaused) {
			continue
		}
		offer := snapshot.ResolveOffer(rule.OfferID)
		if offer == nil || !utils.IsTrue(offer.IsActive) {
			continue
		}

		partner := requestPartner
		if rule.PartnerID != nil {
			partner = snapshot.ResolvePartnerByID(*rule.PartnerID)
			if !partner.IsEligible() {
				continue
			}
		}

		return MatchResult{Matched: true, Rule: rule, Offer: offer, Partner: partner}
	}
	return MatchResult{}
}
