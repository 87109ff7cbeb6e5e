package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-karaoke/internal/models"
	"ms-karaoke/internal/realtime"
)

func TestSubscribeAndPublish(t *testing.T) {
	emitter := realtime.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := emitter.Subscribe(ctx, "inst1")
	assert.Equal(t, 1, emitter.ClientCount("inst1"))

	event := models.ChangeEvent{
		Table:      models.TableWaitlist,
		Action:     models.ActionInsert,
		InstanceID: "inst1",
	}
	emitter.Publish(event)

	select {
	case got := <-ch:
		assert.Equal(t, models.TableWaitlist, got.Table)
		assert.Equal(t, models.ActionInsert, got.Action)
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestPublishScopedToInstance(t *testing.T) {
	emitter := realtime.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := emitter.Subscribe(ctx, "inst1")
	ch2 := emitter.Subscribe(ctx, "inst2")

	emitter.Publish(models.ChangeEvent{Table: models.TableVotes, Action: models.ActionInsert, InstanceID: "inst1"})

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("subscriber of inst1 did not receive its event")
	}

	select {
	case got := <-ch2:
		t.Fatalf("subscriber of inst2 received foreign event: %+v", got)
	default:
	}
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	emitter := realtime.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := emitter.Subscribe(ctx, "inst1")
	require.Equal(t, 1, emitter.ClientCount("inst1"))

	cancel()

	// Removal runs on a goroutine watching ctx.Done.
	assert.Eventually(t, func() bool {
		return emitter.ClientCount("inst1") == 0
	}, time.Second, 10*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishSkipsStalledClient(t *testing.T) {
	emitter := realtime.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Never drained: fill the buffer past capacity.
	emitter.Subscribe(ctx, "inst1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			emitter.Publish(models.ChangeEvent{Table: models.TableVotes, InstanceID: "inst1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled subscriber")
	}
}
