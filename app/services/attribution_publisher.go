package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/hopgate/models"
	"github.com/segmentio/kafka-go"
)

// AttributionPublisher mirrors recorded attribution rows to the click stream
type AttributionPublisher interface {
	PublishClick(ctx context.Context, click *models.ClickLog) error
	PublishImpression(ctx context.Context, impression *models.Impression) error
	Close() error
}

// ClickEvent is the click stream payload
type ClickEvent struct {
	ClickID       string    `json:"click_id"`
	DomainID      uint      `json:"domain_id"`
	PartnerID     *uint     `json:"partner_id,omitempty"`
	OfferID       *uint     `json:"offer_id,omitempty"`
	RuleID        *uint     `json:"rule_id,omitempty"`
	IPHash        *string   `json:"ip_hash,omitempty"`
	UserAgentHash *string   `json:"user_agent_hash,omitempty"`
	Referer       *string   `json:"referer,omitempty"`
	RedirectURL   string    `json:"redirect_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// ImpressionEvent is the impression stream payload
type ImpressionEvent struct {
	ImpressionID  uint      `json:"impression_id"`
	PartnerID     uint      `json:"partner_id"`
	CreativeID    *uint     `json:"creative_id,omitempty"`
	IPHash        *string   `json:"ip_hash,omitempty"`
	UserAgentHash *string   `json:"user_agent_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAttributionPublisher writes attribution events to Kafka topics
type KafkaAttributionPublisher struct {
	writer          messageWriter
	clickTopic      string
	impressionTopic string
	writeTimeout    time.Duration
}

// NewKafkaAttributionPublisher creates a publisher; the topic is set per message
func NewKafkaAttributionPublisher(brokers []string, clickTopic, impressionTopic string, writeTimeout time.Duration) *KafkaAttributionPublisher {
	return newKafkaAttributionPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: writeTimeout,
	}, clickTopic, impressionTopic, writeTimeout)
}

func newKafkaAttributionPublisher(w messageWriter, clickTopic, impressionTopic string, writeTimeout time.Duration) *KafkaAttributionPublisher {
	return &KafkaAttributionPublisher{
		writer:          w,
		clickTopic:      clickTopic,
		impressionTopic: impressionTopic,
		writeTimeout:    writeTimeout,
	}
}

func (p *KafkaAttributionPublisher) PublishClick(ctx context.Context, click *models.ClickLog) error {
	event := ClickEvent{
		ClickID:       click.UUID.String(),
		DomainID:      click.DomainID,
		PartnerID:     click.PartnerID,
		OfferID:       click.OfferID,
		RuleID:        click.RuleID,
		IPHash:        click.IPHash,
		UserAgentHash: click.UserAgentHash,
		Referer:       click.Referer,
		RedirectURL:   click.RedirectURL,
		CreatedAt:     click.CreatedAt,
	}
	return p.publish(ctx, p.clickTopic, []byte(event.ClickID), event)
}

func (p *KafkaAttributionPublisher) PublishImpression(ctx context.Context, impression *models.Impression) error {
	event := ImpressionEvent{
		ImpressionID:  impression.ID,
		PartnerID:     impression.PartnerID,
		CreativeID:    impression.CreativeID,
		IPHash:        impression.IPHash,
		UserAgentHash: impression.UserAgentHash,
		CreatedAt:     impression.CreatedAt,
	}
	// keyed by partner so a partner's impressions stay ordered within a partition
	key := []byte(strconv.FormatUint(uint64(impression.PartnerID), 10))
	return p.publish(ctx, p.impressionTopic, key, event)
}

func (p *KafkaAttributionPublisher) publish(ctx context.Context, topic string, key []byte, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	if p.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaAttributionPublisher) Close() error {
	return p.writer.Close()
}

// NoopAttributionPublisher drops every event; used when Kafka is disabled
type NoopAttributionPublisher struct{}

func NewNoopAttributionPublisher() AttributionPublisher { return NoopAttributionPublisher{} }

func (NoopAttributionPublisher) PublishClick(context.Context, *models.ClickLog) error { return nil }

func (NoopAttributionPublisher) PublishImpression(context.Context, *models.Impression) error {
	return nil
}

func (NoopAttributionPublisher) Close() error { return nil }
