package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nilai-go-api/internal/dto"
)

func TestProgressServiceLocalFanout(t *testing.T) {
	svc := NewProgressService(nil, nil, testLogger())

	events, cancel := svc.Subscribe(7)
	defer cancel()

	svc.Publish(context.Background(), dto.ProgressEvent{
		BatchID:    7,
		Stage:      dto.ProgressStageStarted,
		TotalCount: 3,
	})

	select {
	case got := <-events:
		require.Equal(t, uint(7), got.BatchID)
		require.Equal(t, dto.ProgressStageStarted, got.Stage)
		require.Equal(t, 3, got.TotalCount)
		require.False(t, got.SentAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected a progress event")
	}

	// Events for other batches never reach this subscriber.
	svc.Publish(context.Background(), dto.ProgressEvent{BatchID: 8, Stage: dto.ProgressStageStarted})
	select {
	case got := <-events:
		t.Fatalf("unexpected event for batch %d", got.BatchID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProgressServiceFirehoseReceivesAllBatches(t *testing.T) {
	svc := NewProgressService(nil, nil, testLogger())

	events, cancel := svc.Subscribe(0)
	defer cancel()

	svc.Publish(context.Background(), dto.ProgressEvent{BatchID: 3, Stage: dto.ProgressStageCompleted})

	select {
	case got := <-events:
		require.Equal(t, uint(3), got.BatchID)
	case <-time.After(time.Second):
		t.Fatal("expected the firehose subscriber to receive the event")
	}
}

func TestProgressServiceCancelStopsDelivery(t *testing.T) {
	svc := NewProgressService(nil, nil, testLogger())

	events, cancel := svc.Subscribe(2)
	cancel()

	svc.Publish(context.Background(), dto.ProgressEvent{BatchID: 2, Stage: dto.ProgressStageStarted})

	select {
	case got := <-events:
		t.Fatalf("received event after cancel: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProgressServiceDropsEventsForSlowClients(t *testing.T) {
	svc := NewProgressService(nil, nil, testLogger())

	events, cancel := svc.Subscribe(4)
	defer cancel()

	for i := 0; i < progressSendBufferSize+5; i++ {
		svc.Publish(context.Background(), dto.ProgressEvent{BatchID: 4, Stage: dto.ProgressStageGraded})
	}

	received := 0
	for {
		select {
		case <-events:
			received++
		default:
			require.Equal(t, progressSendBufferSize, received)
			return
		}
	}
}

func TestProgressServiceRedisBridge(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	publisher := NewProgressService(clientA, nil, testLogger())
	consumer := NewProgressService(clientB, nil, testLogger())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	consumer.Start(ctx)

	events, cancel := consumer.Subscribe(5)
	defer cancel()

	// The subscription lands asynchronously, so publish until it sticks.
	var got dto.ProgressEvent
	require.Eventually(t, func() bool {
		publisher.Publish(context.Background(), dto.ProgressEvent{
			BatchID:    5,
			Stage:      dto.ProgressStageGraded,
			TotalCount: 2,
		})
		select {
		case got = <-events:
			return true
		default:
			return false
		}
	}, 3*time.Second, 25*time.Millisecond)

	require.Equal(t, uint(5), got.BatchID)
	require.Equal(t, dto.ProgressStageGraded, got.Stage)
}

func TestProgressServiceIgnoresItsOwnBrokerEcho(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	svc := NewProgressService(client, nil, testLogger())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	svc.Start(ctx)

	events, cancel := svc.Subscribe(6)
	defer cancel()

	svc.Publish(context.Background(), dto.ProgressEvent{BatchID: 6, Stage: dto.ProgressStageStarted})

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("expected the local broadcast")
	}

	// The redis loopback carries this node's own id and must be dropped.
	select {
	case got := <-events:
		t.Fatalf("received duplicated event: %+v", got)
	case <-time.After(150 * time.Millisecond):
	}
}
