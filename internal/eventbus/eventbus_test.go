package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversInOrderWithFilter(t *testing.T) {
	bus := NewMemoryBus(16)
	ctx := context.Background()

	var mu sync.Mutex
	var merged []int64
	_, err := bus.Subscribe(ctx, Filter{Types: []string{EventAssetMerged}}, func(_ context.Context, ev *Envelope) {
		a, err := DecodeAssetEvent(ev)
		assert.NoError(t, err)
		mu.Lock()
		merged = append(merged, a.Identity)
		mu.Unlock()
	})
	require.NoError(t, err)

	for i := int64(1); i <= 3; i++ {
		env, err := NewAssetEnvelope(EventAssetMerged, "test", AssetEvent{Identity: i, Path: "m.asset"})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, env))
	}
	created, err := NewAssetEnvelope(EventAssetCreated, "test", AssetEvent{Identity: 99})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, created))

	// Close дожидается доставки принятых событий
	require.NoError(t, bus.Close())

	assert.Equal(t, []int64{1, 2, 3}, merged)
	stats := bus.Metrics()
	assert.Equal(t, uint64(4), stats.Published)
	assert.Equal(t, uint64(3), stats.Consumed)

	assert.ErrorIs(t, bus.Publish(ctx, created), ErrClosed)
	require.NoError(t, bus.Close())
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	ctx := context.Background()

	calls := 0
	sub, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { calls++ })
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "x"}))
	require.NoError(t, bus.Close())
	assert.Zero(t, calls)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	ctx := context.Background()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "a"}))
	<-started // первое событие в обработчике, буфер пуст
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "b"}))
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "c", Priority: 1}))

	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(tctx, &Envelope{EventType: "d", Priority: 9}), context.DeadlineExceeded)

	close(block)
	require.NoError(t, bus.Close())
}

func TestMemoryBus_PublishRacingCloseIsDelivered(t *testing.T) {
	for round := 0; round < 20; round++ {
		bus := NewMemoryBus(2)
		ctx := context.Background()

		var delivered atomic.Uint64
		_, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { delivered.Add(1) })
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := bus.Publish(ctx, &Envelope{EventType: "a", Priority: 5})
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}()
		}
		require.NoError(t, bus.Close())
		wg.Wait()

		// Всё, что принято шиной, доставлено подписчику
		assert.Equal(t, bus.Metrics().Published, delivered.Load())
	}
}

func TestDecodeAssetEvent_RejectsForeignType(t *testing.T) {
	_, err := DecodeAssetEvent(&Envelope{EventType: "ChatEvent"})
	assert.Error(t, err)
}

func TestNewAssetEnvelope(t *testing.T) {
	env, err := NewAssetEnvelope(EventAssetCreated, "importer", AssetEvent{Identity: 7, Path: "maps/a.asset", Layers: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "maps/a.asset", env.Metadata["path"])

	ev, err := DecodeAssetEvent(env)
	require.NoError(t, err)
	assert.Equal(t, AssetEvent{Identity: 7, Path: "maps/a.asset", Layers: 2}, ev)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "a"}))
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "b"}))
	require.NoError(t, bus.Close())

	me.Collect()
	me.Collect()
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.inflight))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestDurableName_StableForFilter(t *testing.T) {
	assert.Equal(t, "tmx_TMX_EVENTS_all", durableName("TMX_EVENTS", Filter{}))

	a := durableName("TMX_EVENTS", Filter{Types: []string{EventAssetMerged, EventAssetCreated}})
	b := durableName("TMX_EVENTS", Filter{Types: []string{EventAssetCreated, EventAssetMerged}})
	assert.Equal(t, a, b, "порядок типов в фильтре не влияет на имя consumer")
	assert.NotContains(t, a, ".")
}
