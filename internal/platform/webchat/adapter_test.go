package webchat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langbot-app/LangBot/internal/pipeline"
	"github.com/langbot-app/LangBot/internal/platform"
	"github.com/langbot-app/LangBot/pkg/models"
)

func TestIngestBlocksUntilReplyMessageFulfillsTheFuture(t *testing.T) {
	a := New(nil)
	a.RegisterListener(func(ctx context.Context, event models.Event) error {
		go func() {
			_ = a.ReplyMessage(ctx, event, models.MessageChain{models.Plain("pong")})
		}()
		return nil
	})

	chain, err := a.Ingest(context.Background(), "user-1", "test", "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", chain.PlainText())
}

func TestIngestWithoutListenerFails(t *testing.T) {
	a := New(nil)
	_, err := a.Ingest(context.Background(), "user-1", "test", "ping")
	assert.Error(t, err)
}

func TestReplyMessageWithoutWaiterFails(t *testing.T) {
	a := New(nil)
	event := models.Event{SourcePlatformObject: "unknown-id"}
	err := a.ReplyMessage(context.Background(), event, models.MessageChain{models.Plain("x")})
	assert.Error(t, err)
}

func TestIngestCancelsOnContextDone(t *testing.T) {
	a := New(nil)
	a.RegisterListener(func(context.Context, models.Event) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Ingest(ctx, "user-1", "test", "ping")
	assert.Error(t, err)
}

func TestSendDebugMessageBuildsFriendMessageForPersonSession(t *testing.T) {
	a := New(nil)
	var got models.Event
	a.RegisterListener(func(ctx context.Context, event models.Event) error {
		got = event
		go func() { _ = a.ReplyMessage(ctx, event, models.MessageChain{models.Plain("pong")}) }()
		return nil
	})

	chain, err := a.SendDebugMessage(context.Background(), SessionTypePerson, models.MessageChain{models.Plain("ping")})
	require.NoError(t, err)
	assert.Equal(t, "pong", chain.PlainText())
	assert.Equal(t, models.EventFriendMessage, got.Type)
	assert.Equal(t, models.LauncherPerson, got.LauncherType())
}

func TestSendDebugMessageBuildsGroupMessageForGroupSession(t *testing.T) {
	a := New(nil)
	var got models.Event
	a.RegisterListener(func(ctx context.Context, event models.Event) error {
		got = event
		go func() { _ = a.ReplyMessage(ctx, event, models.MessageChain{models.Plain("pong")}) }()
		return nil
	})

	_, err := a.SendDebugMessage(context.Background(), SessionTypeGroup, models.MessageChain{models.Plain("ping")})
	require.NoError(t, err)
	assert.Equal(t, models.EventGroupMessage, got.Type)
	assert.Equal(t, models.LauncherGroup, got.LauncherType())
	assert.NotEmpty(t, got.Sender.GroupID)
}

func TestSendDebugMessageRecordsHistoryBothDirections(t *testing.T) {
	a := New(nil)
	a.RegisterListener(func(ctx context.Context, event models.Event) error {
		go func() { _ = a.ReplyMessage(ctx, event, models.MessageChain{models.Plain("pong")}) }()
		return nil
	})

	_, err := a.SendDebugMessage(context.Background(), SessionTypePerson, models.MessageChain{models.Plain("ping")})
	require.NoError(t, err)

	history := a.History().Messages(SessionTypePerson)
	require.Len(t, history, 2)
	assert.Equal(t, "inbound", history[0].Direction)
	assert.Equal(t, "outbound", history[1].Direction)
}

func TestSendDebugMessagePropagatesListenerRejection(t *testing.T) {
	a := New(nil)
	a.RegisterListener(func(context.Context, models.Event) error {
		return pipeline.ErrQueueFull
	})

	_, err := a.SendDebugMessage(context.Background(), SessionTypePerson, models.MessageChain{models.Plain("ping")})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrQueueFull)
}

func TestInterruptCancelsInFlightRequest(t *testing.T) {
	a := New(nil)
	started := make(chan struct{})
	a.RegisterListener(func(ctx context.Context, event models.Event) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := a.SendDebugMessage(context.Background(), SessionTypePerson, models.MessageChain{models.Plain("ping")})
		done <- err
	}()

	<-started
	assert.True(t, a.Interrupt(SessionTypePerson))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected interrupt to unblock the in-flight request")
	}
}

func TestInterruptWithNoInFlightRequestReturnsFalse(t *testing.T) {
	a := New(nil)
	assert.False(t, a.Interrupt(SessionTypePerson))
}

var _ platform.Adapter = (*Adapter)(nil)
