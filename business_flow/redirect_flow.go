package businessflow

import (
	"context"
	"net/url"

	"github.com/amirphl/hopgate/logger"
	"github.com/amirphl/hopgate/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RedirectRequest is an inbound click.
// Optional fields are nil when the request did not carry them.
type RedirectRequest struct {
	Host        string
	PartnerCode *string
	OfferHint   *string
	IP          *string
	UserAgent   *string
	Referer     *string
}

// RedirectResult is where the visitor is sent
type RedirectResult struct {
	Location string
	ClickID  uuid.UUID
	Match    MatchResult
}

// RedirectOptions configures destination construction
type RedirectOptions struct {
	// FallbackURL receives clicks that match no rule
	FallbackURL string
	// ClickIDParam, when set, appends the click id to matched hoplinks
	ClickIDParam string
	// PartnerParam, when set, appends the credited partner's public code to matched hoplinks
	PartnerParam string
}

// RedirectFlow resolves a click to a destination and records its attribution.
// Public flow, no authentication required.
type RedirectFlow interface {
	Dispatch(ctx context.Context, req RedirectRequest) (*RedirectResult, error)
}

type RedirectFlowImpl struct {
	index     *RuleIndex
	matcher   RuleMatcher
	recorder  AttributionRecorder
	validator *validator.Validate
	opts      RedirectOptions
	log       logrus.FieldLogger
}

func NewRedirectFlow(index *RuleIndex, matcher RuleMatcher, recorder AttributionRecorder, opts RedirectOptions, log logrus.FieldLogger) RedirectFlow {
	return &RedirectFlowImpl{
		index:     index,
		matcher:   matcher,
		recorder:  recorder,
		validator: NewValidator(),
		opts:      opts,
		log:       log,
	}
}

func (f *RedirectFlowImpl) Dispatch(ctx context.Context, req RedirectRequest) (*RedirectResult, error) {
	host := NormalizeHostname(req.Host)
	if host == "" {
		return nil, ErrTrackingDomainRequired
	}

	// one snapshot for the whole click
	snapshot := f.index.Snapshot()
	domain := snapshot.ResolveDomain(host)
	if domain == nil {
		return nil, ErrTrackingDomainNotFound
	}

	partnerCode, err := parsePartnerCode(f.validator, req.PartnerCode)
	if err != nil {
		return nil, err
	}
	offerHint, err := parseOfferHint(f.validator, req.OfferHint)
	if err != nil {
		return nil, err
	}

	var partnerID *uint
	if partnerCode != nil {
		if partner := snapshot.ResolvePartner(*partnerCode); partner.IsEligible() {
			partnerID = utils.ToPtr(partner.ID)
		} else {
			logger.WithContext(f.log, ctx).WithField("partner_code", *partnerCode).
				Debug("partner not eligible, recording partner-less click")
		}
	}

	match := f.matcher.MatchSnapshot(snapshot, domain.ID, partnerID, offerHint)
	clickID := uuid.New()

	var location string
	if match.Matched {
		location = f.decorateHoplink(match, clickID)
		redirectsTotal.WithLabelValues("matched").Inc()
	} else {
		if f.opts.FallbackURL == "" {
			return nil, ErrFallbackNotConfigured
		}
		location = f.opts.FallbackURL
		redirectsTotal.WithLabelValues("fallback").Inc()
	}

	requestID, _ := ctx.Value(utils.RequestIDKey).(string)
	f.recorder.RecordClick(ClickContext{
		ClickID:   clickID,
		DomainID:  domain.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
		RequestID: requestID,
	}, match, location)

	return &RedirectResult{Location: location, ClickID: clickID, Match: match}, nil
}

// decorateHoplink appends the configured attribution parameters to the offer's hoplink
// after its existing query.
// A hoplink that does not parse is passed through untouched.
func (f *RedirectFlowImpl) decorateHoplink(match MatchResult, clickID uuid.UUID) string {
	hoplink := match.Offer.HoplinkURL
	if f.opts.ClickIDParam == "" && (f.opts.PartnerParam == "" || match.Partner == nil) {
		return hoplink
	}

	u, err := url.Parse(hoplink)
	if err != nil {
		f.log.WithError(err).WithField("offer_id", match.Offer.ID).Warn("offer hoplink does not parse, passing through")
		return hoplink
	}
	extra := url.Values{}
	if f.opts.ClickIDParam != "" {
		extra.Set(f.opts.ClickIDParam, clickID.String())
	}
	if f.opts.PartnerParam != "" && match.Partner != nil {
		extra.Set(f.opts.PartnerParam, match.Partner.PublicCode)
	}
	// the vendor's own query is kept byte for byte, some vendors sign it
	if u.RawQuery == "" {
		u.RawQuery = extra.Encode()
	} else {
		u.RawQuery += "&" + extra.Encode()
	}
	return u.String()
}
