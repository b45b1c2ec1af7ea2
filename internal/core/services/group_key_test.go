package services

import (
	"context"
	"errors"
	"testing"

	"ghostrecon/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroupKeyFixture() (*GroupKeyService, *memConvs, *memKeys, *recordingNotifier) {
	convs := newMemConvs(&domain.Conversation{ID: "g", IsGroup: true, Participants: []string{"a", "b", "c"}})
	keys := newMemKeys()
	n := &recordingNotifier{}
	return NewGroupKeyService(nil, convs, keys, n, &passTx{}), convs, keys, n
}

func TestDistributeStoresOnlyParticipants(t *testing.T) {
	svc, _, keys, n := newGroupKeyFixture()
	ctx := context.Background()

	count, err := svc.Distribute(ctx, "a", "g", map[string]string{"a": "ka", "b": "kb", "intruder": "kx"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotContains(t, keys.keys, "g/intruder")

	sent := n.all()
	require.Len(t, sent, 1, "the distributor is not notified")
	assert.Equal(t, "b", sent[0].to)
	assert.Equal(t, domain.GroupKeyEvent{ConversationID: "g", DistributedBy: "a"}, sent[0].event)

	k, err := svc.Key(ctx, "b", "g")
	require.NoError(t, err)
	assert.Equal(t, "kb", k.EncryptedKey)
	assert.Equal(t, 0, k.RotationCount)
}

func TestRotateIncrementsCounters(t *testing.T) {
	svc, convs, keys, n := newGroupKeyFixture()
	ctx := context.Background()
	_, err := svc.Distribute(ctx, "a", "g", map[string]string{"b": "k1"})
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, "c", "g", map[string]string{"b": "k2"})
	require.NoError(t, err)
	assert.Equal(t, 1, convs.byID["g"].KeyRotationCount)
	assert.Equal(t, 1, keys.keys["g/b"].RotationCount)
	assert.Equal(t, "k2", keys.keys["g/b"].EncryptedKey)
	assert.Equal(t, domain.GroupKeyEvent{ConversationID: "g", DistributedBy: "c", RotationCount: 1}, n.all()[1].event)
}

func TestGroupKeyAccessRules(t *testing.T) {
	svc, _, keys, _ := newGroupKeyFixture()
	ctx := context.Background()

	_, err := svc.Distribute(ctx, "z", "g", map[string]string{"a": "k"})
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
	_, err = svc.Distribute(ctx, "a", "missing", nil)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	_, err = svc.Key(ctx, "a", "g")
	assert.ErrorIs(t, err, domain.ErrGroupKeyNotFound)

	keys.err = errors.New("write failed")
	_, err = svc.Distribute(ctx, "a", "g", map[string]string{"b": "k"})
	assert.Error(t, err)
}
