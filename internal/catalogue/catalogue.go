// Package catalogue implements the process-wide root: the single
// entry point that owns the data directory and every schema beneath
// it.
//
// Grounded on folio/db.go's Open using os.OpenRoot for sandboxed
// filesystem access to a single data directory; the catalogue extends
// that one level, owning a directory of schema subdirectories instead
// of a single file.
package catalogue

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cottontaildb/cottontail/internal/clog"
	"github.com/cottontaildb/cottontail/internal/cterr"
	"github.com/cottontaildb/cottontail/internal/schema"
)

var logger = clog.WithComponent("catalogue")

// Config configures the open catalogue.
type Config struct {
	RootPath string
}

// Catalogue is the process-wide database root.
type Catalogue struct {
	root *os.Root
	path string

	mu      sync.RWMutex
	schemas map[string]*schema.Schema
}

// Open opens or creates the catalogue at cfg.RootPath, opening every
// schema subdirectory it finds.
func Open(cfg Config) (*Catalogue, error) {
	if err := os.MkdirAll(cfg.RootPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: create catalogue root %s: %v", cterr.ErrStorage, cfg.RootPath, err)
	}
	root, err := os.OpenRoot(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open catalogue root %s: %v", cterr.ErrStorage, cfg.RootPath, err)
	}

	c := &Catalogue{root: root, path: cfg.RootPath, schemas: make(map[string]*schema.Schema)}

	entries, err := os.ReadDir(cfg.RootPath)
	if err != nil {
		root.Close()
		return nil, fmt.Errorf("%w: list catalogue root %s: %v", cterr.ErrStorage, cfg.RootPath, err)
	}
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		s, err := schema.Open(de.Name(), filepath.Join(cfg.RootPath, de.Name()))
		if err != nil {
			logger.Warn().Str("schema", de.Name()).Err(err).Msg("skipping unreadable schema directory")
			continue
		}
		c.schemas[de.Name()] = s
	}

	logger.Info().Str("root", cfg.RootPath).Int("schemas", len(c.schemas)).Msg("opened catalogue")
	return c, nil
}

// Schemas lists the names of currently open schemas.
func (c *Catalogue) Schemas() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		out = append(out, name)
	}
	return out
}

// Schema returns the named schema, or (nil, false) if it doesn't
// exist.
func (c *Catalogue) Schema(name string) (*schema.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	return s, ok
}

// CreateSchema creates and opens a new schema directory.
func (c *Catalogue) CreateSchema(name string) (*schema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[name]; exists {
		return nil, fmt.Errorf("%w: schema %s", cterr.ErrAlreadyExists, name)
	}
	s, err := schema.Open(name, filepath.Join(c.path, name))
	if err != nil {
		return nil, err
	}
	c.schemas[name] = s
	return s, nil
}

// DropSchema closes and removes the named schema and its directory.
func (c *Catalogue) DropSchema(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.schemas[name]
	if !ok {
		return fmt.Errorf("%w: schema %s", cterr.ErrDoesNotExist, name)
	}
	if err := s.Close(); err != nil {
		return err
	}
	delete(c.schemas, name)
	return os.RemoveAll(filepath.Join(c.path, name))
}

// Close closes every open schema and releases the catalogue root.
func (c *Catalogue) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, s := range c.schemas {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.root.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
