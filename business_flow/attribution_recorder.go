package businessflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/hopgate/app/services"
	"github.com/amirphl/hopgate/models"
	"github.com/amirphl/hopgate/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClickLogWriter appends click logs
type ClickLogWriter interface {
	Save(ctx context.Context, click *models.ClickLog) error
}

// ImpressionWriter appends impressions
type ImpressionWriter interface {
	Save(ctx context.Context, impression *models.Impression) error
}

// ClickContext carries the request signals recorded with an attribution event.
// IP, UserAgent and Referer are nil when the request did not supply them.
type ClickContext struct {
	ClickID   uuid.UUID
	DomainID  uint
	IP        *string
	UserAgent *string
	Referer   *string
	RequestID string
}

// AttributionRecorder appends click and impression records
type AttributionRecorder interface {
	// RecordClick schedules exactly one click log insert and returns immediately.
	// Failures are logged and counted, never returned.
	RecordClick(cc ClickContext, match MatchResult, issuedURL string)
	// RecordImpression inserts an impression row and waits for the result
	RecordImpression(ctx context.Context, partnerID uint, creativeID *uint, cc ClickContext) error
	// Wait blocks until in-flight click writes finish
	Wait()
}

type AttributionRecorderImpl struct {
	clicks       ClickLogWriter
	impressions  ImpressionWriter
	hasher       services.FingerprintHasher
	publisher    services.AttributionPublisher
	writeTimeout time.Duration
	log          logrus.FieldLogger

	inflight sync.WaitGroup
}

func NewAttributionRecorder(
	clicks ClickLogWriter,
	impressions ImpressionWriter,
	hasher services.FingerprintHasher,
	publisher services.AttributionPublisher,
	writeTimeout time.Duration,
	log logrus.FieldLogger,
) *AttributionRecorderImpl {
	if publisher == nil {
		publisher = services.NewNoopAttributionPublisher()
	}
	return &AttributionRecorderImpl{
		clicks:       clicks,
		impressions:  impressions,
		hasher:       hasher,
		publisher:    publisher,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// RecordClick builds the row on the caller's goroutine and inserts it on a new one
// detached from the request, so a dropped connection cannot cancel the write.
func (r *AttributionRecorderImpl) RecordClick(cc ClickContext, match MatchResult, issuedURL string) {
	click := &models.ClickLog{
		UUID:          cc.ClickID,
		DomainID:      cc.DomainID,
		IPHash:        r.hasher.Hash(cc.IP),
		UserAgentHash: r.hasher.Hash(cc.UserAgent),
		Referer:       cc.Referer,
		RedirectURL:   issuedURL,
		CreatedAt:     utils.UTCNow(),
	}
	if click.UUID == uuid.Nil {
		click.UUID = uuid.New()
	}
	if match.Matched {
		click.RuleID = utils.ToPtr(match.Rule.ID)
		click.OfferID = utils.ToPtr(match.Offer.ID)
		if match.Partner != nil {
			click.PartnerID = utils.ToPtr(match.Partner.ID)
		}
	}

	entry := r.log.WithFields(logrus.Fields{
		"request_id": cc.RequestID,
		"click_id":   click.UUID.String(),
		"domain_id":  click.DomainID,
	})

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				attributionWritesTotal.WithLabelValues(attributionKindClick, writeOutcomePanic).Inc()
				entry.WithField("panic", rec).Error("click log write panicked, attribution dropped")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()

		if err := r.clicks.Save(ctx, click); err != nil {
			outcome := writeOutcome(err)
			attributionWritesTotal.WithLabelValues(attributionKindClick, outcome).Inc()
			entry.WithError(err).WithField("outcome", outcome).Error("click log write failed, attribution dropped")
			return
		}
		attributionWritesTotal.WithLabelValues(attributionKindClick, writeOutcomeSuccess).Inc()

		pubCtx, pubCancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer pubCancel()
		if err := r.publisher.PublishClick(pubCtx, click); err != nil {
			attributionPublishFailuresTotal.WithLabelValues(attributionKindClick).Inc()
			entry.WithError(err).Warn("failed to publish click event")
		}
	}()
}

func (r *AttributionRecorderImpl) RecordImpression(ctx context.Context, partnerID uint, creativeID *uint, cc ClickContext) (err error) {
	impression := &models.Impression{
		PartnerID:     partnerID,
		CreativeID:    creativeID,
		IPHash:        r.hasher.Hash(cc.IP),
		UserAgentHash: r.hasher.Hash(cc.UserAgent),
		CreatedAt:     utils.UTCNow(),
	}

	entry := r.log.WithFields(logrus.Fields{
		"request_id": cc.RequestID,
		"partner_id": partnerID,
	})

	defer func() {
		if rec := recover(); rec != nil {
			attributionWritesTotal.WithLabelValues(attributionKindImpression, writeOutcomePanic).Inc()
			entry.WithField("panic", rec).Error("impression write panicked")
			err = NewBusinessError("IMPRESSION_RECORD_FAILED", "Failed to record impression", fmt.Errorf("panic: %v", rec))
		}
	}()

	saveCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.impressions.Save(saveCtx, impression); err != nil {
		outcome := writeOutcome(err)
		attributionWritesTotal.WithLabelValues(attributionKindImpression, outcome).Inc()
		entry.WithError(err).WithField("outcome", outcome).Error("impression write failed")
		return NewBusinessError("IMPRESSION_RECORD_FAILED", "Failed to record impression", err)
	}
	attributionWritesTotal.WithLabelValues(attributionKindImpression, writeOutcomeSuccess).Inc()

	// the publish gets its own budget, the save may have used most of the first one
	pubCtx, pubCancel := context.WithTimeout(ctx, r.writeTimeout)
	defer pubCancel()
	if err := r.publisher.PublishImpression(pubCtx, impression); err != nil {
		attributionPublishFailuresTotal.WithLabelValues(attributionKindImpression).Inc()
		entry.WithError(err).Warn("failed to publish impression event")
	}
	return nil
}

func (r *AttributionRecorderImpl) Wait() {
	r.inflight.Wait()
}

func writeOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return writeOutcomeTimeout
	}
	return writeOutcomeFailure
}
