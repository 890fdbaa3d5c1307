package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingIndex struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingIndex) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingIndex) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRuleIndexRefresher_InitialLoadIsSynchronous(t *testing.T) {
	log, _ := test.NewNullLogger()
	index := &countingIndex{}
	refresher := NewRuleIndexRefresher(index, time.Hour, nil, "", log)

	stop := refresher.Start(context.Background())
	defer stop()

	assert.Equal(t, 1, index.count())
}

func TestRuleIndexRefresher_Ticks(t *testing.T) {
	log, _ := test.NewNullLogger()
	index := &countingIndex{}
	refresher := NewRuleIndexRefresher(index, 20*time.Millisecond, nil, "", log)

	stop := refresher.Start(context.Background())
	defer stop()

	require.Eventually(t, func() bool { return index.count() >= 4 }, 2*time.Second, 10*time.Millisecond)
}

func TestRuleIndexRefresher_Invalidate(t *testing.T) {
	log, _ := test.NewNullLogger()
	index := &countingIndex{}
	refresher := NewRuleIndexRefresher(index, time.Hour, nil, "", log)

	stop := refresher.Start(context.Background())
	defer stop()

	refresher.Invalidate()
	require.Eventually(t, func() bool { return index.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRuleIndexRefresher_KeepsRunningAfterFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	index := &countingIndex{err: errors.New("store unavailable")}
	refresher := NewRuleIndexRefresher(index, 10*time.Millisecond, nil, "", log)

	stop := refresher.Start(context.Background())
	defer stop()

	require.NotEmpty(t, hook.Entries)
	assert.Contains(t, hook.Entries[0].Message, "initial rule index load failed")
	require.Eventually(t, func() bool { return index.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRuleIndexRefresher_StopWaits(t *testing.T) {
	log, _ := test.NewNullLogger()
	index := &countingIndex{}
	refresher := NewRuleIndexRefresher(index, 5*time.Millisecond, nil, "", log)

	stop := refresher.Start(context.Background())
	stop()
	after := index.count()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, index.count())
}

func TestRuleIndexRefresher_RedisInvalidation(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(context.Background()).Err())

	log, _ := test.NewNullLogger()
	index := &countingIndex{}
	channel := "hopgate:test:rules:" + time.Now().Format("150405.000000")
	refresher := NewRuleIndexRefresher(index, time.Hour, rdb, channel, log)

	stop := refresher.Start(context.Background())
	defer stop()

	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(context.Background(), channel).Result()
		return err == nil && n[channel] > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, PublishRuleInvalidation(context.Background(), rdb, channel, "offer 7 updated"))
	require.Eventually(t, func() bool { return index.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
}
