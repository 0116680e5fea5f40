// Package schema groups entities under a named directory, the layer
// between a catalogue root and individual entities.
//
// Grounded on folio/db.go's os.OpenRoot sandboxing: each schema owns a
// directory beneath the catalogue root, and every entity path used to
// open or create an entity.Entity is resolved relative to it.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/entity"
)

var logger = clog.WithComponent("schema")

// Schema is an open, named directory of entities.
type Schema struct {
	name string
	dir  string

	mu       sync.RWMutex
	entities map[string]*entity.Entity
}

// Open opens or creates the schema directory at dir.
func Open(name, dir string) (*Schema, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create schema dir %s: %v", cterr.ErrStorage, dir, err)
	}
	s := &Schema{name: name, dir: dir, entities: make(map[string]*entity.Entity)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list schema dir %s: %v", cterr.ErrStorage, dir, err)
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		e, err := entity.Open(de.Name(), filepath.Join(dir, de.Name()), entity.DefaultBufferPages)
		if err != nil {
			continue // not an entity directory; skip
		}
		s.entities[de.Name()] = e
	}

	logger.Debug().Str("schema", name).Int("entities", len(s.entities)).Msg("opened schema")
	return s, nil
}

// Name reports the schema's name.
func (s *Schema) Name() string { return s.name }

// Entities lists the names of entities currently open in this schema.
func (s *Schema) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entities))
	for name := range s.entities {
		out = append(out, name)
	}
	return out
}

// Entity returns the named entity, or (nil, false) if it doesn't
// exist.
func (s *Schema) Entity(name string) (*entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[name]
	return e, ok
}

// CreateEntity creates and opens a new entity named name with the
// given columns.
func (s *Schema) CreateEntity(name string, columns []entity.ColumnSpec) (*entity.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[name]; exists {
		return nil, fmt.Errorf("%w: entity %s", cterr.ErrAlreadyExists, name)
	}
	e, err := entity.Create(name, filepath.Join(s.dir, name), columns, entity.DefaultBufferPages)
	if err != nil {
		return nil, err
	}
	s.entities[name] = e
	return e, nil
}

// DropEntity closes and removes the named entity and its directory.
func (s *Schema) DropEntity(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[name]
	if !ok {
		return fmt.Errorf("%w: entity %s", cterr.ErrDoesNotExist, name)
	}
	if err := e.Close(); err != nil {
		return err
	}
	delete(s.entities, name)
	return os.RemoveAll(filepath.Join(s.dir, name))
}

// Close closes every open entity in the schema.
func (s *Schema) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, e := range s.entities {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
