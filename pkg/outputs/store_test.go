package outputs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
)

func TestStore_ListGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewStore(dir)
	require.NoError(t, err)
	sessions := session.NewManager(store)

	sess, err := sessions.CreateSession("q", []models.AgentDescriptor{{ID: "a"}}, models.VersionV1, models.LanguageEN)
	require.NoError(t, err)

	require.NoError(t, store.SaveFile("outputs/out-1.md", []byte("final answer")))
	sess.SequenceOutputFiles = map[int]string{1: "out-1"}
	require.NoError(t, sessions.Save(sess))

	outs := NewStore(dir, sessions)

	list, err := outs.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "out-1", list[0].ID)
	assert.Equal(t, sess.ID, list[0].SessionID)
	assert.Equal(t, 1, list[0].SequenceNumber)

	got, err := outs.Get("out-1")
	require.NoError(t, err)
	assert.Equal(t, "final answer", got.Content)
	assert.Equal(t, sess.ID, got.SessionID)

	_, err = outs.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, outs.Delete("out-1"))
	err = outs.Delete("out-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
