// Package session provides file-backed persistence for dialogue sessions
// and the Manager that creates sessions and builds and appends their
// messages. It keeps no registry of running sessions or their cancel
// functions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dialogcore/engine/pkg/models"
)

// ErrSessionNotFound is the sentinel error for a missing session, mapped to
// HTTP 404 at the API boundary.
var ErrSessionNotFound = errors.New("session: not found")

// Store persists Session aggregates as one JSON file per session under
// <dir>/sessions, writing via temp-file-then-rename so readers never
// observe a partially written file.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the sessions/ subdir if
// it does not already exist.
func NewStore(dir string) (*Store, error) {
	sessionsDir := filepath.Join(dir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("session store: create sessions dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, "sessions", id+".json")
}

// SaveSession persists sess as a whole-file replacement: it is encoded to a
// temp file in the same directory, then atomically renamed over the target
// path, so the store is durable before this call returns — the realtime
// bus treats a successful SaveSession as the commit point for emitting its
// corresponding event.
func (s *Store) SaveSession(sess *models.Session) error {
	disk := toDiskForm(sess)
	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("session store: marshal %s: %w", sess.ID, err)
	}

	target := s.sessionPath(sess.ID)
	tmp := target + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session store: rename into place: %w", err)
	}
	return nil
}

// LoadSession reads a session by id. A missing file returns (nil, false,
// nil) — ErrSessionNotFound is reserved for callers that want a Go error
// instead of the boolean.
func (s *Store) LoadSession(id string) (*models.Session, bool, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session store: read %s: %w", id, err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("session store: unmarshal %s: %w", id, err)
	}
	applyLoadDefaults(&sess)
	return &sess, true, nil
}

// applyLoadDefaults fills the structural defaults the store contract
// promises for a session file missing fields added by a later schema
// version: sequenceNumber=1, empty stageHistory, currentStage reset to the
// first stage, status completed.
func applyLoadDefaults(sess *models.Session) {
	if sess.SequenceNumber == 0 {
		sess.SequenceNumber = 1
	}
	if sess.StageHistory == nil {
		sess.StageHistory = []models.StageExecutionRecord{}
	}
	if sess.CurrentStage == "" {
		sess.CurrentStage = string(models.StageIndividualThought)
	}
	if sess.Status == "" {
		sess.Status = models.SessionCompleted
	}
}

// DeleteSession removes a session's file. Returns false if it did not exist.
func (s *Store) DeleteSession(id string) bool {
	err := os.Remove(s.sessionPath(id))
	return err == nil
}

// ListSessions returns every persisted session sorted by updatedAt
// descending; sessions with an invalid (zero) updatedAt sort last.
func (s *Store) ListSessions() ([]*models.Session, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "sessions"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session store: list sessions dir: %w", err)
	}

	var sessions []*models.Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		sess, ok, err := s.LoadSession(id)
		if err != nil || !ok {
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i].UpdatedAt, sessions[j].UpdatedAt
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
	return sessions, nil
}

// SaveFile writes an arbitrary byte payload (an output artifact or a
// facilitator log record) to a path relative to the store's root,
// creating parent directories as needed.
func (s *Store) SaveFile(relPath string, data []byte) error {
	full := filepath.Join(s.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("session store: create dir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("session store: write %s: %w", relPath, err)
	}
	return nil
}

// diskSession mirrors models.Session but with its free-form fields replaced
// by their sanitized (cycle-free, marker-substituted) equivalents before
// marshaling.
type diskSession struct {
	models.Session
	Messages     []diskMessage            `json:"messages"`
	StageHistory []diskStageExecution     `json:"stageHistory"`
	Metadata     any                      `json:"metadata,omitempty"`
}

type diskMessage struct {
	models.Message
	Metadata any `json:"metadata,omitempty"`
}

type diskStageExecution struct {
	models.StageExecutionRecord
	AgentResponses []diskAgentResponse `json:"agentResponses"`
}

type diskAgentResponse struct {
	models.AgentResponse
	StageData any `json:"stageData,omitempty"`
}

func toDiskForm(sess *models.Session) diskSession {
	disk := diskSession{Session: *sess}
	if sess.Metadata != nil {
		disk.Metadata = sanitize(sess.Metadata)
	}

	disk.Messages = make([]diskMessage, len(sess.Messages))
	for i, m := range sess.Messages {
		dm := diskMessage{Message: m}
		if m.Metadata != nil {
			dm.Metadata = sanitize(m.Metadata)
		}
		disk.Messages[i] = dm
	}

	disk.StageHistory = make([]diskStageExecution, len(sess.StageHistory))
	for i, sh := range sess.StageHistory {
		dsh := diskStageExecution{StageExecutionRecord: sh}
		dsh.AgentResponses = make([]diskAgentResponse, len(sh.AgentResponses))
		for j, ar := range sh.AgentResponses {
			dar := diskAgentResponse{AgentResponse: ar}
			if ar.StageData != nil {
				dar.StageData = sanitize(ar.StageData)
			}
			dsh.AgentResponses[j] = dar
		}
		disk.StageHistory[i] = dsh
	}

	return disk
}
