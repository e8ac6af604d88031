// Package store persists one JSON state file per conversation context. The
// state blob is opaque at this layer; each strategy owns its own shape.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mnemo/internal/errs"
	"mnemo/internal/jsonx"
	"mnemo/internal/utils"
)

// Store is a durable, human-inspectable key-value store keyed by context id.
// Single logical writer per context; no internal locking.
type Store struct {
	dir    string
	logger *utils.Logger
}

// New creates a context store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create context dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: utils.NewComponentLogger("ContextStore"),
	}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validateID rejects ids that would escape the store directory or collide
// with temp files.
func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("context id is empty")
	}
	if strings.ContainsAny(id, "/\\") || id != filepath.Base(id) {
		return fmt.Errorf("invalid context id %q", id)
	}
	return nil
}

// Exists reports whether a context with the given id is stored.
func (s *Store) Exists(id string) bool {
	if validateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Create persists initialState for a new context. Fails with
// errs.ErrAlreadyExists when the id is already in use; O_EXCL makes the
// check-and-create atomic against a racing creator.
func (s *Store) Create(id string, initialState jsonx.RawMessage) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := jsonx.MarshalIndent(initialState, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal initial state: %w", err)
	}

	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("create context %q: %w", id, errs.ErrAlreadyExists)
		}
		return fmt.Errorf("create context file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write initial state: %w", err)
	}
	s.logger.Info("Created context %q", id)
	return nil
}

// Load returns the stored state blob. Fails with errs.ErrNotFound when the
// context does not exist.
func (s *Store) Load(id string) (jsonx.RawMessage, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load context %q: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("read context %q: %w", id, err)
	}
	return jsonx.RawMessage(data), nil
}

// Save overwrites the state blob for id. The write goes through a temp file
// and rename so a crash mid-write never corrupts the previous state.
func (s *Store) Save(id string, state jsonx.RawMessage) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := jsonx.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := atomicWrite(s.path(id), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save context %q: %w", id, err)
	}
	return nil
}

// List returns the sorted set of stored context ids.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read context dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a context. Deleting an absent context is a warned no-op,
// not an error.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Context %q not found, nothing to delete", id)
			return nil
		}
		return fmt.Errorf("delete context %q: %w", id, err)
	}
	s.logger.Info("Deleted context %q", id)
	return nil
}
