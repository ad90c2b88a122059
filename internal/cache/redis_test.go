// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredisTier(t *testing.T) (*RedisTier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisTierWithClient(client, time.Minute), mr
}

func TestRedisTier_SetGet(t *testing.T) {
	tier, _ := newMiniredisTier(t)
	ctx := context.Background()

	_, ok, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)

	entry := Entry{ModelID: "m1", Value: "cached completion"}
	require.NoError(t, tier.Set(ctx, "k1", entry))

	got, ok, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry, got)
}

func TestRedisTier_TTLEviction(t *testing.T) {
	tier, mr := newMiniredisTier(t)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k1", Entry{ModelID: "m1", Value: "v"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok, "entries expire after the TTL")
}

func TestRedisTier_CorruptEntryIsAMiss(t *testing.T) {
	tier, mr := newMiniredisTier(t)
	require.NoError(t, mr.Set("k1", "not json"))

	_, ok, err := tier.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisTier_Ping(t *testing.T) {
	tier, mr := newMiniredisTier(t)
	require.NoError(t, tier.Ping(context.Background()))

	mr.Close()
	require.Error(t, tier.Ping(context.Background()))
}

func TestRedisTier_GetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tier := newRedisTierWithClient(client, time.Minute)

	mock.ExpectGet("k1").SetErr(context.DeadlineExceeded)
	_, ok, err := tier.Get(context.Background(), "k1")
	require.Error(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultTTLApplied(t *testing.T) {
	client, _ := redismock.NewClientMock()
	tier := newRedisTierWithClient(client, 0)
	require.Equal(t, DefaultTTL, tier.ttl)
}
