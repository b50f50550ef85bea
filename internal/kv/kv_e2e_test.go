//go:build e2e

package kv_test

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/kv"
)

func requireRedis(t *testing.T) {
	t.Helper()
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	defer rc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: redis not reachable on 127.0.0.1:6379: %v", err)
	}
}

func newClient(t *testing.T) *kv.Client {
	t.Helper()
	ns := kv.NewNamespaces(kv.Options{Host: "127.0.0.1", Port: 6379, DBFrequency: 15, DialTimeout: 2 * time.Second})
	return ns.Frequency
}

func TestClientPingReportsReachability(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	assert.True(t, c.Ping(context.Background()))
}

func TestClientSetExAndGetRoundTrip(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetEx(ctx, "kv-e2e:setex", "hello", time.Minute))
	v, ok, err := c.Get(ctx, "kv-e2e:setex")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok, err = c.Get(ctx, "kv-e2e:missing-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientExistsReflectsSetExAndTTLExpiry(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetEx(ctx, "kv-e2e:exists", "v", 50*time.Millisecond))
	exists, err := c.Exists(ctx, "kv-e2e:exists")
	require.NoError(t, err)
	assert.True(t, exists)

	time.Sleep(150 * time.Millisecond)
	exists, err = c.Exists(ctx, "kv-e2e:exists")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClientIncrAccumulatesAndRefreshesTTL(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "kv-e2e:counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = c.Incr(ctx, "kv-e2e:counter", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestClientSAddSIsMemberAndSCard(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	ctx := context.Background()
	key := "kv-e2e:set"

	added, err := c.SAdd(ctx, key, "member-a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, added)

	added, err = c.SAdd(ctx, key, "member-a")
	require.NoError(t, err)
	assert.EqualValues(t, 0, added, "re-adding an existing member adds nothing")

	member, err := c.SIsMember(ctx, key, "member-a")
	require.NoError(t, err)
	assert.True(t, member)

	_, err = c.SAdd(ctx, key, "member-b")
	require.NoError(t, err)
	card, err := c.SCard(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 2, card)
}

func TestClientRecordAndQueryPrunesAndCountsWithinWindow(t *testing.T) {
	requireRedis(t)
	c := newClient(t)
	ctx := context.Background()
	key := "kv-e2e:pipeline"

	now := float64(time.Now().UnixNano()) / 1e9
	result, err := c.RecordAndQuery(ctx, key, "1.0", now, now-60, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.CountInWindow)
	require.Len(t, result.LastTwo, 1)

	now2 := now + 1
	result, err = c.RecordAndQuery(ctx, key, "2.0", now2, now2-60, time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.CountInWindow)
	require.Len(t, result.LastTwo, 2)
	assert.InDelta(t, now, result.LastTwo[0].Score, 0.01)
	assert.InDelta(t, now2, result.LastTwo[1].Score, 0.01)
}
