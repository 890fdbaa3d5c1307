// Package scheduler runs the background tasks that keep the redirect engine current
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// IndexRefresher is the part of the rule index the refresher drives
type IndexRefresher interface {
	Refresh(ctx context.Context) error
}

// RuleIndexRefresher reloads the rule index on a fixed interval and whenever an
// invalidation arrives, in process or over Redis pub/sub.
// The staleness of served rules is bounded by the interval.
type RuleIndexRefresher struct {
	index          IndexRefresher
	interval       time.Duration
	refreshTimeout time.Duration
	rdb            redis.UniversalClient
	channel        string
	log            logrus.FieldLogger

	invalidate chan struct{}
}

// NewRuleIndexRefresher creates a refresher; rdb may be nil to disable pub/sub invalidation
func NewRuleIndexRefresher(index IndexRefresher, interval time.Duration, rdb redis.UniversalClient, channel string, log logrus.FieldLogger) *RuleIndexRefresher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &RuleIndexRefresher{
		index:          index,
		interval:       interval,
		refreshTimeout: 10 * time.Second,
		rdb:            rdb,
		channel:        channel,
		log:            log,
		invalidate:     make(chan struct{}, 1),
	}
}

// Invalidate requests a refresh as soon as possible. Requests arriving while one is
// pending collapse into it.
func (s *RuleIndexRefresher) Invalidate() {
	select {
	case s.invalidate <- struct{}{}:
	default:
	}
}

// Start performs the initial load synchronously, then keeps refreshing in the
// background. The returned function stops the refresher and waits for it to exit.
func (s *RuleIndexRefresher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	if err := s.runOnce(ctx); err != nil {
		s.log.WithError(err).Error("initial rule index load failed, retrying on next tick")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.runOnce(ctx)
			case <-s.invalidate:
				_ = s.runOnce(ctx)
				ticker.Reset(s.interval)
			}
		}
	}()

	if s.rdb != nil && s.channel != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.listen(ctx)
		}()
	}

	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *RuleIndexRefresher) runOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()
	// RuleIndex logs and counts its own failures
	return s.index.Refresh(ctx)
}

// listen forwards Redis invalidation messages until ctx is done
func (s *RuleIndexRefresher) listen(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	entry := s.log.WithField("channel", s.channel)
	entry.Info("listening for rule invalidations")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			entry.WithField("payload", msg.Payload).Debug("rule invalidation received")
			s.Invalidate()
		}
	}
}

// PublishRuleInvalidation announces a rule change to every running refresher
func PublishRuleInvalidation(ctx context.Context, rdb redis.UniversalClient, channel, reason string) error {
	return rdb.Publish(ctx, channel, reason).Err()
}

// StartCacheHealthMonitor periodically pings Redis and logs connectivity problems.
// The returned function stops the monitor.
func StartCacheHealthMonitor(parent context.Context, client redis.UniversalClient, interval time.Duration, log logrus.FieldLogger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.WithError(err).Warn("redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}
