package session

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const SnapshotVersion = 1

// Record is the serialized form of a session.
type Record struct {
	ID         string                    `yaml:"id"`
	UserPrompt string                    `yaml:"user_prompt"`
	PDFContext string                    `yaml:"pdf_context,omitempty"`
	CreatedAt  time.Time                 `yaml:"created_at"`
	History    conversation.Conversation `yaml:"history"`
}

type Snapshot struct {
	Version  int       `yaml:"version"`
	TakenAt  time.Time `yaml:"taken_at"`
	Sessions []Record  `yaml:"sessions"`
}

// Snapshot copies every live session. Sessions are ordered by id.
func (r *Registry) Snapshot() Snapshot {
	ret := Snapshot{
		Version: SnapshotVersion,
		TakenAt: time.Now().UTC(),
	}
	for _, id := range r.IDs() {
		s, err := r.Get(id)
		if err != nil {
			continue
		}
		v := s.View()
		ret.Sessions = append(ret.Sessions, Record{
			ID:         v.ID,
			UserPrompt: v.UserPrompt,
			PDFContext: v.PDFContext,
			CreatedAt:  s.CreatedAt,
			History:    v.History,
		})
	}
	return ret
}

// Restore adds the sessions of a snapshot under their recorded ids. Existing sessions with
// the same id are replaced.
func (r *Registry) Restore(snapshot Snapshot) error {
	if snapshot.Version != SnapshotVersion {
		return errors.Errorf("unsupported session snapshot version %d", snapshot.Version)
	}

	restored := make(map[string]*Session, len(snapshot.Sessions))
	for _, rec := range snapshot.Sessions {
		if rec.ID == "" {
			return errors.New("session snapshot contains a session without id")
		}
		s := New(rec.UserPrompt, rec.PDFContext)
		s.ID = rec.ID
		if !rec.CreatedAt.IsZero() {
			s.CreatedAt = rec.CreatedAt
		}
		for _, m := range rec.History {
			if err := s.history.Append(m); err != nil {
				return errors.Wrapf(err, "session %s", rec.ID)
			}
		}
		if !s.history.IsAlternating() {
			log.Warn().Str("session_id", rec.ID).Msg("Restored session has consecutive turns of the same role")
		}
		restored[rec.ID] = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range restored {
		r.sessions[id] = s
	}
	log.Debug().Int("restored", len(restored)).Int("live_sessions", len(r.sessions)).Msg("Restored sessions")
	return nil
}

// FileStore reads and writes registry snapshots as YAML.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load returns an empty snapshot when the file does not exist yet.
func (f *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{Version: SnapshotVersion}, nil
		}
		return Snapshot{}, errors.Wrapf(err, "could not read session snapshot %s", f.Path)
	}

	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, errors.Wrapf(err, "could not parse session snapshot %s", f.Path)
	}
	return snapshot, nil
}

// Save writes the snapshot to a temporary file and renames it over Path.
func (f *FileStore) Save(snapshot Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "could not encode session snapshot")
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "could not create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".sessions-*.yaml")
	if err != nil {
		return errors.Wrap(err, "could not create temporary snapshot file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "could not write session snapshot")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return errors.Wrapf(err, "could not move session snapshot to %s", f.Path)
	}

	log.Debug().Str("path", f.Path).Int("sessions", len(snapshot.Sessions)).Msg("Saved session snapshot")
	return nil
}
