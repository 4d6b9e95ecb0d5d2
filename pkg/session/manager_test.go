package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogcore/engine/pkg/models"
)

func testAgents() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "alpha", Name: "Alpha", Style: models.StyleLogical},
		{ID: "beta", Name: "Beta", Style: models.StyleEmotive},
	}
}

func TestManager_CreateSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(store)

	sess, err := mgr.CreateSession("recursion", testAgents(), models.VersionV1, models.LanguageEN)
	require.NoError(t, err)

	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Equal(t, 1, sess.SequenceNumber)
	assert.Equal(t, string(models.StageIndividualThought), sess.CurrentStage)

	loaded, ok, err := store.LoadSession(sess.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sess.Title, loaded.Title)
}

func TestManager_StartSequence_RequiresCompleted(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(store)

	sess, err := mgr.CreateSession("q", testAgents(), models.VersionV1, models.LanguageEN)
	require.NoError(t, err)

	err = mgr.StartSequence(sess)
	assert.Error(t, err, "an active session cannot start a new sequence")

	sess.Status = models.SessionCompleted
	require.NoError(t, mgr.StartSequence(sess))
	assert.Equal(t, 2, sess.SequenceNumber)
	assert.Equal(t, models.SessionActive, sess.Status)
}

func TestManager_AppendUserMessage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(store)

	sess, err := mgr.CreateSession("q", testAgents(), models.VersionV2, models.LanguageEN)
	require.NoError(t, err)

	msg := mgr.AppendUserMessage(sess, "what is recursion?")
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, models.AgentIDUser, msg.AgentID)
	assert.Equal(t, sess.SequenceNumber, msg.SequenceNumber)
	assert.Equal(t, models.RoleUser, msg.Role)
}

func TestManager_Append_IsMonotoneAndAppendOnly(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(store)
	sess, err := mgr.CreateSession("q", testAgents(), models.VersionV1, models.LanguageEN)
	require.NoError(t, err)

	mgr.AppendUserMessage(sess, "q")
	m2 := mgr.NewAgentMessage(sess, "alpha", "response", string(models.StageIndividualThought), nil)
	mgr.Append(sess, m2)

	require.Len(t, sess.Messages, 2)
	assert.True(t, sess.Messages[0].Timestamp.Before(sess.Messages[1].Timestamp) || sess.Messages[0].Timestamp.Equal(sess.Messages[1].Timestamp))

	ids := map[string]bool{}
	for _, m := range sess.Messages {
		assert.False(t, ids[m.ID], "message ids must be unique")
		ids[m.ID] = true
	}
}
