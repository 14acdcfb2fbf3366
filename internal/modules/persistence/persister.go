// Package persistence writes synthesized circuits to disk as OpenQASM 2.0
// artifacts and optionally mirrors them to object storage.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
)

// DefaultOutputDir is where artifacts go when no directory is configured.
const DefaultOutputDir = "outputs"

// ErrPersistence matches every *PersistenceError.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError reports an artifact that could not be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ArtifactName returns "<label>_<problem>_<precision>.qasm".
func ArtifactName(label, problem string, precision int) string {
	return label + "_" + problem + "_" + strconv.Itoa(precision) + ".qasm"
}

// ArtifactMirror receives a copy of every saved artifact.
type ArtifactMirror interface {
	Mirror(ctx context.Context, name string, data []byte) error
}

// Persister saves circuits under a fixed output directory. Saving the same
// label, problem and precision again overwrites the earlier artifact.
type Persister struct {
	dir    string
	mirror ArtifactMirror
	log    zerolog.Logger
}

// NewPersister creates a persister rooted at dir ("" means DefaultOutputDir).
func NewPersister(dir string, log zerolog.Logger) *Persister {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &Persister{
		dir: dir,
		log: log.With().Str("component", "persistence").Logger(),
	}
}

// SetMirror enables mirroring. Mirror failures are logged and do not fail Save.
func (p *Persister) SetMirror(m ArtifactMirror) {
	p.mirror = m
}

// Dir returns the output directory.
func (p *Persister) Dir() string {
	return p.dir
}

// Save writes c to <dir>/<ArtifactName> and returns the path. The file is
// written to a temporary name first and renamed into place, so a reader never
// sees a partial artifact.
func (p *Persister) Save(ctx context.Context, c *quantum.Circuit, label, problem string, precision int) (string, error) {
	path := filepath.Join(p.dir, ArtifactName(label, problem, precision))
	if c == nil {
		return "", &PersistenceError{Path: path, Err: fmt.Errorf("circuit is nil")}
	}
	if err := ctx.Err(); err != nil {
		return "", &PersistenceError{Path: path, Err: err}
	}

	src, err := c.QASM()
	if err != nil {
		return "", &PersistenceError{Path: path, Err: err}
	}
	data := []byte(src)

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", &PersistenceError{Path: path, Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	tmp, err := os.CreateTemp(p.dir, ".artifact-*.tmp")
	if err != nil {
		return "", &PersistenceError{Path: path, Err: fmt.Errorf("output directory is not writable: %w", err)}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &PersistenceError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &PersistenceError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", &PersistenceError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", &PersistenceError{Path: path, Err: err}
	}

	p.log.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Int("operations", c.NumOperations()).
		Msg("Artifact saved")

	if p.mirror != nil {
		name := filepath.Base(path)
		if err := p.mirror.Mirror(ctx, name, data); err != nil {
			p.log.Error().Err(err).Str("artifact", name).Msg("Failed to mirror artifact")
		}
	}

	return path, nil
}
