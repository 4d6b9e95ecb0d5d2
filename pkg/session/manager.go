package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dialogcore/engine/pkg/models"
)

// Manager owns the create/append/sequence lifecycle rules a router relies
// on: creating a Session, starting a new sequence on top of a completed
// one, and appending messages with monotone timestamps and a correct
// sequenceNumber. It delegates all persistence to a Store.
type Manager struct {
	store *Store
}

// NewManager constructs a Manager backed by store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// CreateSession starts a brand new Session in the active status, bound to
// the given agent roster, and persists it before returning.
func (m *Manager) CreateSession(title string, agents []models.AgentDescriptor, version models.SessionVersion, language models.Language) (*models.Session, error) {
	now := time.Now()
	status, stage := models.NewSequenceStart()
	sess := &models.Session{
		ID:             uuid.NewString(),
		Title:          title,
		Agents:         agents,
		Messages:       []models.Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
		Status:         status,
		CurrentStage:   stage,
		StageHistory:   []models.StageExecutionRecord{},
		StageSummaries: []models.StageSummary{},
		SequenceNumber: 1,
		Language:       language,
		Version:        version,
	}
	if err := m.store.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("session manager: create %s: %w", sess.ID, err)
	}
	return sess, nil
}

// StartSequence begins a new user turn on an existing session. A new turn
// is only valid once the previous sequence completed; it bumps
// sequenceNumber and reopens status to active.
func (m *Manager) StartSequence(sess *models.Session) error {
	if sess.Status != models.SessionCompleted {
		return fmt.Errorf("session manager: session %s is not completed, cannot start a new sequence", sess.ID)
	}
	sess.SequenceNumber++
	sess.Status, sess.CurrentStage = models.NewSequenceStart()
	return nil
}

// AppendUserMessage builds, appends, and returns the initial user message
// of a sequence. The caller is responsible for ensuring it has not already
// been appended (the store contract requires the first user message per
// sequenceNumber to be unique).
func (m *Manager) AppendUserMessage(sess *models.Session, content string) models.Message {
	msg := m.NewUserMessage(sess, content)
	m.Append(sess, msg)
	return msg
}

// NewUserMessage builds (without appending) the user-role message that
// starts a sequence.
func (m *Manager) NewUserMessage(sess *models.Session, content string) models.Message {
	return models.Message{
		ID:             uuid.NewString(),
		AgentID:        models.AgentIDUser,
		Content:        content,
		Timestamp:      time.Now(),
		Role:           models.RoleUser,
		SequenceNumber: sess.SequenceNumber,
	}
}

// NewAgentMessage builds (without appending) an agent-authored message for
// the current sequence, tagged with stage and carrying metadata.
func (m *Manager) NewAgentMessage(sess *models.Session, agentID, content, stage string, metadata map[string]any) models.Message {
	return models.Message{
		ID:             uuid.NewString(),
		AgentID:        agentID,
		Content:        content,
		Timestamp:      time.Now(),
		Role:           models.RoleAgent,
		Stage:          stage,
		SequenceNumber: sess.SequenceNumber,
		Metadata:       metadata,
	}
}

// NewSystemMessage builds (without appending) a system-role message (a
// stage summary, a convergence notice, a consensus snapshot) for the
// current sequence.
func (m *Manager) NewSystemMessage(sess *models.Session, content, stage string) models.Message {
	return models.Message{
		ID:             uuid.NewString(),
		AgentID:        models.AgentIDSystem,
		Content:        content,
		Timestamp:      time.Now(),
		Role:           models.RoleSystem,
		Stage:          stage,
		SequenceNumber: sess.SequenceNumber,
	}
}

// NewFacilitatorMessage builds (without appending) a message authored by
// the facilitator pseudo-agent.
func (m *Manager) NewFacilitatorMessage(sess *models.Session, content, stage string, metadata map[string]any) models.Message {
	return models.Message{
		ID:             uuid.NewString(),
		AgentID:        models.AgentIDFacilitator,
		Content:        content,
		Timestamp:      time.Now(),
		Role:           models.RoleSystem,
		Stage:          stage,
		SequenceNumber: sess.SequenceNumber,
		Metadata:       metadata,
	}
}

// Append appends msg to sess's message log and bumps UpdatedAt. It does
// not persist; callers call Save once per append, before emitting the
// corresponding realtime event.
func (m *Manager) Append(sess *models.Session, msg models.Message) {
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = msg.Timestamp
}

// Save persists sess via the underlying Store. The router must call this
// after every mutation and before emitting the corresponding realtime
// event — persistence is the commit point.
func (m *Manager) Save(sess *models.Session) error {
	return m.store.SaveSession(sess)
}

// Store exposes the underlying Store for callers (routers, API handlers)
// that need Load/Delete/List directly.
func (m *Manager) Store() *Store {
	return m.store
}
