package businessflow

import (
	"cmp"
	"context"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/hopgate/logger"
	"github.com/amirphl/hopgate/models"
	"github.com/amirphl/hopgate/repository"
	"github.com/amirphl/hopgate/utils"
	"github.com/sirupsen/logrus"
)

// RuleSnapshot is an immutable view of the routing tables.
// Values returned by its lookups are shared and must not be modified.
type RuleSnapshot struct {
	generation uint64
	loadedAt   time.Time

	domainsByHost  map[string]*models.TrackingDomain
	partnersByCode map[string]*models.Partner
	partnersByID   map[uint]*models.Partner
	offersByID     map[uint]*models.Offer
	rulesByDomain  map[uint][]*models.RedirectRule
	ruleCount      int
}

var emptySnapshot = &RuleSnapshot{}

// NewRuleSnapshot builds a snapshot from a consistent read of the routing tables.
// Rules are grouped per domain and ordered by priority desc, weight desc,
// created_at asc, id asc.
func NewRuleSnapshot(tables *models.RoutingTables, generation uint64, loadedAt time.Time) *RuleSnapshot {
	s := &RuleSnapshot{
		generation:     generation,
		loadedAt:       loadedAt,
		domainsByHost:  make(map[string]*models.TrackingDomain),
		partnersByCode: make(map[string]*models.Partner),
		partnersByID:   make(map[uint]*models.Partner),
		offersByID:     make(map[uint]*models.Offer),
		rulesByDomain:  make(map[uint][]*models.RedirectRule),
	}
	if tables == nil {
		return s
	}

	for _, d := range tables.Domains {
		if d == nil || !utils.IsTrue(d.IsActive) {
			continue
		}
		host := NormalizeHostname(d.Hostname)
		if host == "" {
			continue
		}
		domain := *d
		s.domainsByHost[host] = &domain
	}
	for _, p := range tables.Partners {
		if p == nil {
			continue
		}
		partner := *p
		s.partnersByID[partner.ID] = &partner
		s.partnersByCode[partner.PublicCode] = &partner
	}
	for _, o := range tables.Offers {
		if o == nil {
			continue
		}
		offer := *o
		s.offersByID[offer.ID] = &offer
	}
	for _, r := range tables.Rules {
		if r == nil {
			continue
		}
		rule := *r
		s.rulesByDomain[rule.DomainID] = append(s.rulesByDomain[rule.DomainID], &rule)
		s.ruleCount++
	}
	for _, rules := range s.rulesByDomain {
		slices.SortFunc(rules, compareRules)
	}
	return s
}

// compareRules orders rules by priority desc, weight desc, then creation order
func compareRules(a, b *models.RedirectRule) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Generation is zero for a snapshot that was never loaded
func (s *RuleSnapshot) Generation() uint64 { return s.generation }

func (s *RuleSnapshot) LoadedAt() time.Time { return s.loadedAt }

// RuleCount is the number of rules across all domains, paused ones included
func (s *RuleSnapshot) RuleCount() int { return s.ruleCount }

// ResolveDomain looks up an active tracking domain by hostname
func (s *RuleSnapshot) ResolveDomain(hostname string) *models.TrackingDomain {
	return s.domainsByHost[NormalizeHostname(hostname)]
}

// ResolvePartner looks up a partner by public code regardless of eligibility
func (s *RuleSnapshot) ResolvePartner(publicCode string) *models.Partner {
	return s.partnersByCode[publicCode]
}

func (s *RuleSnapshot) ResolvePartnerByID(id uint) *models.Partner {
	return s.partnersByID[id]
}

func (s *RuleSnapshot) ResolveOffer(id uint) *models.Offer {
	return s.offersByID[id]
}

// RulesFor returns every rule of a domain in selection order: priority desc, weight
// desc, then creation order. Rule bindings are never filtered here. Among rules tied
// on priority and weight, those for offerHint come first, then those bound to
// partnerID. The returned slice is a fresh copy.
func (s *RuleSnapshot) RulesFor(domainID uint, partnerID *uint, offerHint *uint) []*models.RedirectRule {
	out := slices.Clone(s.rulesByDomain[domainID])
	if offerHint == nil && partnerID == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b *models.RedirectRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		if offerHint != nil {
			if c := preferHit(a.OfferID == *offerHint, b.OfferID == *offerHint); c != 0 {
				return c
			}
		}
		if partnerID != nil {
			aHit := a.PartnerID != nil && *a.PartnerID == *partnerID
			bHit := b.PartnerID != nil && *b.PartnerID == *partnerID
			return preferHit(aHit, bHit)
		}
		return 0
	})
	return out
}

func preferHit(a, b bool) int {
	switch {
	case a && !b:
		return -1
	case b && !a:
		return 1
	}
	return 0
}

// NormalizeHostname lower-cases a Host header value and strips the port and trailing dot
func NormalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

// RuleIndex serves the current RuleSnapshot and rebuilds it from the store.
// Readers never block: the snapshot is swapped whole behind an atomic pointer.
type RuleIndex struct {
	source repository.RoutingRepository
	log    logrus.FieldLogger

	current    atomic.Pointer[RuleSnapshot]
	generation uint64
	refreshMu  sync.Mutex
}

func NewRuleIndex(source repository.RoutingRepository, log logrus.FieldLogger) *RuleIndex {
	return &RuleIndex{source: source, log: log}
}

// Snapshot returns the serving snapshot, or an empty one before the first load
func (i *RuleIndex) Snapshot() *RuleSnapshot {
	if s := i.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Loaded reports whether a snapshot has been published
func (i *RuleIndex) Loaded() bool {
	return i.current.Load() != nil
}

// Refresh loads the routing tables and publishes a new snapshot.
// On failure the previous snapshot keeps serving.
func (i *RuleIndex) Refresh(ctx context.Context) error {
	i.refreshMu.Lock()
	defer i.refreshMu.Unlock()

	start := time.Now()
	tables, err := i.source.LoadRoutingTables(ctx)
	ruleIndexRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		ruleIndexRefreshFailuresTotal.Inc()
		logger.WithContext(i.log, ctx).WithError(err).WithField("generation", i.Snapshot().Generation()).
			Warn("rule index refresh failed, keeping previous snapshot")
		return NewBusinessError("RULE_INDEX_REFRESH_FAILED", "Failed to refresh rule index", err)
	}

	i.generation++
	snapshot := NewRuleSnapshot(tables, i.generation, utils.UTCNow())
	i.current.Store(snapshot)

	ruleIndexGeneration.Set(float64(snapshot.Generation()))
	ruleIndexRules.Set(float64(snapshot.RuleCount()))
	i.log.WithFields(logrus.Fields{
		"generation": snapshot.Generation(),
		"domains":    len(snapshot.domainsByHost),
		"rules":      snapshot.RuleCount(),
	}).Debug("rule index refreshed")
	return nil
}

func (i *RuleIndex) ResolveDomain(hostname string) *models.TrackingDomain {
	return i.Snapshot().ResolveDomain(hostname)
}

func (i *RuleIndex) ResolvePartner(publicCode string) *models.Partner {
	return i.Snapshot().ResolvePartner(publicCode)
}

func (i *RuleIndex) ResolveOffer(id uint) *models.Offer {
	return i.Snapshot().ResolveOffer(id)
}

func (i *RuleIndex) RulesFor(domainID uint, partnerID *uint, offerHint *uint) []*models.RedirectRule {
	return i.Snapshot().RulesFor(domainID, partnerID, offerHint)
}
