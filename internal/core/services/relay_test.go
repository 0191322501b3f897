package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"peercall/internal/core/domain"
	"peercall/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu      sync.Mutex
	failFor map[domain.ConnectionID]bool
	sent    map[domain.ConnectionID][]map[string]interface{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		failFor: make(map[domain.ConnectionID]bool),
		sent:    make(map[domain.ConnectionID][]map[string]interface{}),
	}
}

func (s *fakeSender) Send(id domain.ConnectionID, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFor[id] {
		return errors.New("peer connection closed")
	}
	s.sent[id] = append(s.sent[id], message.(map[string]interface{}))
	return nil
}

func (s *fakeSender) messages(id domain.ConnectionID) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]interface{}, len(s.sent[id]))
	copy(out, s.sent[id])
	return out
}

type fakeRelayMetrics struct {
	delivered int
	failed    int
}

func (m *fakeRelayMetrics) RelayDelivered(count int) { m.delivered += count }
func (m *fakeRelayMetrics) RelayFailed(count int)    { m.failed += count }

func TestBroadcastExcludesOrigin(t *testing.T) {
	ctx := context.Background()
	directory := memory.NewMemoryRoomDirectory()
	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Join(ctx, "r1", "c2"))
	require.NoError(t, directory.Join(ctx, "r1", "c3"))

	sender := newFakeSender()
	relay := NewSignalingRelay(directory, sender, nil, zap.NewNop().Sugar())

	delivered := relay.Broadcast(ctx, "r1", "c1", map[string]interface{}{"type": "test"})

	assert.Equal(t, 2, delivered)
	assert.Empty(t, sender.messages("c1"), "origin must not receive its own broadcast")
	assert.Len(t, sender.messages("c2"), 1)
	assert.Len(t, sender.messages("c3"), 1)
}

func TestBroadcastSwallowsDeliveryFailures(t *testing.T) {
	ctx := context.Background()
	directory := memory.NewMemoryRoomDirectory()
	require.NoError(t, directory.Join(ctx, "r1", "c1"))
	require.NoError(t, directory.Join(ctx, "r1", "c2"))
	require.NoError(t, directory.Join(ctx, "r1", "c3"))

	sender := newFakeSender()
	sender.failFor["c2"] = true
	metrics := &fakeRelayMetrics{}
	relay := NewSignalingRelay(directory, sender, metrics, zap.NewNop().Sugar())

	delivered := relay.Broadcast(ctx, "r1", "c1", map[string]interface{}{"type": "test"})

	assert.Equal(t, 1, delivered, "a dead peer reduces the count but does not fail the broadcast")
	assert.Len(t, sender.messages("c3"), 1)
	assert.Equal(t, 1, metrics.delivered)
	assert.Equal(t, 1, metrics.failed)
}

func TestBroadcastUnknownRoom(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	relay := NewSignalingRelay(memory.NewMemoryRoomDirectory(), sender, nil, zap.NewNop().Sugar())

	delivered := relay.Broadcast(ctx, "ghost", "c1", map[string]interface{}{"type": "test"})
	assert.Zero(t, delivered)
}
