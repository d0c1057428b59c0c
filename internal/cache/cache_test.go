package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(rdb)
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, hit := c.Get(ctx, "k1")
	assert.False(t, hit)

	c.Set(ctx, "k1", []byte("value"), time.Minute)

	val, hit := c.Get(ctx, "k1")
	require.True(t, hit)
	assert.Equal(t, "value", string(val))
}

func TestInvalidateRemovesMatchingPrefix(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "compliance:aaa", []byte("1"), time.Minute)
	c.Set(ctx, "compliance:bbb", []byte("2"), time.Minute)
	c.Set(ctx, "region:ccc", []byte("3"), time.Minute)

	c.Invalidate(ctx, "compliance:")

	_, hit := c.Get(ctx, "compliance:aaa")
	assert.False(t, hit)
	_, hit = c.Get(ctx, "compliance:bbb")
	assert.False(t, hit)
	_, hit = c.Get(ctx, "region:ccc")
	assert.True(t, hit)
}

func TestIncrCreatesWithTTL(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "session:abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "session:abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetUnreachableBackendIsAMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	c := NewFromClient(rdb)

	_, hit := c.Get(context.Background(), "anything")
	assert.False(t, hit)
}

func TestComplianceKeyInvariantUnderReordering(t *testing.T) {
	k1 := ComplianceKey("us-east-1",
		[]string{"ec2:instance", "rds:instance"},
		map[string]string{"b": "2", "a": "1"},
		"all",
		[]string{"us-west-2", "us-east-1"},
		"1",
	)
	k2 := ComplianceKey("us-east-1",
		[]string{"rds:instance", "ec2:instance"},
		map[string]string{"a": "1", "b": "2"},
		"all",
		[]string{"us-east-1", "us-west-2"},
		"1",
	)

	assert.Equal(t, k1, k2)
}

func TestComplianceKeyChangesWithPolicyVersion(t *testing.T) {
	k1 := ComplianceKey("us-east-1", []string{"ec2:instance"}, nil, "all", []string{"us-east-1"}, "1")
	k2 := ComplianceKey("us-east-1", []string{"ec2:instance"}, nil, "all", []string{"us-east-1"}, "2")

	assert.NotEqual(t, k1, k2)
}
