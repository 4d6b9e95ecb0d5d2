// Package outputs provides read access to the finalized-answer artifacts a
// router writes under outputs/<id>.md, backing the GET/DELETE /outputs
// HTTP surface. Writing an artifact remains the router's
// job via session.Store.SaveFile; this package only lists, reads, and
// deletes what routers already produced, and cross-references each file
// against the session that owns it via Session.SequenceOutputFiles.
package outputs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
)

// ErrNotFound is returned by Get/Delete when the output id has no file.
var ErrNotFound = errors.New("outputs: not found")

// Store reads outputs/<id>.md artifacts from the same data directory the
// session.Store writes them into, and resolves each artifact's owning
// session by scanning Session.SequenceOutputFiles.
type Store struct {
	dataDir  string
	sessions *session.Manager
}

// NewStore constructs a Store rooted at dataDir (the same root passed to
// session.NewStore), reusing sessions for owning-session lookups.
func NewStore(dataDir string, sessions *session.Manager) *Store {
	return &Store{dataDir: dataDir, sessions: sessions}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dataDir, "outputs", id+".md")
}

// ownerIndex maps output id -> (sessionID, sequenceNumber) by scanning every
// persisted session's SequenceOutputFiles. Built fresh on every call since
// the artifact set changes rarely and this mirrors the store's own
// whole-file-reread discipline rather than maintaining a separate index
// that could drift from the sessions directory.
func (s *Store) ownerIndex() map[string]struct {
	SessionID string
	Sequence  int
} {
	idx := make(map[string]struct {
		SessionID string
		Sequence  int
	})
	sessions, err := s.sessions.Store().ListSessions()
	if err != nil {
		return idx
	}
	for _, sess := range sessions {
		for seq, outputID := range sess.SequenceOutputFiles {
			idx[outputID] = struct {
				SessionID string
				Sequence  int
			}{SessionID: sess.ID, Sequence: seq}
		}
	}
	return idx
}

// List returns every output artifact, newest first.
func (s *Store) List() ([]models.OutputArtifact, error) {
	dir := filepath.Join(s.dataDir, "outputs")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outputs store: read dir: %w", err)
	}

	idx := s.ownerIndex()
	var out []models.OutputArtifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		info, err := entry.Info()
		if err != nil {
			continue
		}
		owner := idx[id]
		out = append(out, models.OutputArtifact{
			ID:             id,
			SessionID:      owner.SessionID,
			SequenceNumber: owner.Sequence,
			CreatedAt:      info.ModTime().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// Get returns one artifact's full content.
func (s *Store) Get(id string) (models.OutputArtifact, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return models.OutputArtifact{}, ErrNotFound
	}
	if err != nil {
		return models.OutputArtifact{}, fmt.Errorf("outputs store: read %s: %w", id, err)
	}
	info, statErr := os.Stat(s.path(id))
	artifact := models.OutputArtifact{ID: id, Content: string(data)}
	if statErr == nil {
		artifact.CreatedAt = info.ModTime().Format("2006-01-02T15:04:05Z07:00")
	}
	if owner, ok := s.ownerIndex()[id]; ok {
		artifact.SessionID = owner.SessionID
		artifact.SequenceNumber = owner.Sequence
	}
	return artifact, nil
}

// Delete removes an artifact's file. Returns ErrNotFound if it did not
// exist.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}
