//go:build integration

package broker

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/internal/testinfra"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

func TestIntegration_RedisStreamPublish(t *testing.T) {
	ctx := context.Background()
	ctr, err := testinfra.StartRedis(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(ctx) }) //nolint:errcheck

	cfg := ingestgate.BrokerConfig{Driver: ingestgate.BrokerDriverRedis, URI: ctr.Addr}
	dialer, err := NewDialer(cfg)
	require.NoError(t, err)

	rec := metrics.NewRecorder()
	pub, err := NewPublisher(cfg, testTopic, dialer, Deps{Sink: rec})
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() }) //nolint:errcheck

	require.NoError(t, pub.PublishOne(ctx, []byte("first")))
	require.NoError(t, pub.PublishBatch(ctx, [][]byte{[]byte("second"), []byte("third")}))
	assert.Equal(t, StateLive, pub.State())
	assert.Zero(t, rec.Total(ingestgate.MetricKafkaProducerErrors, topicDims))

	client := redis.NewClient(&redis.Options{Addr: ctr.Addr})
	defer client.Close()
	entries, err := client.XRange(ctx, testTopic, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Values[RedisStreamField])
	assert.Equal(t, "third", entries[2].Values[RedisStreamField])
}
