// Package artifacts keeps generated dream media in a directory together
// with a JSON index of their metadata.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/ruya/internal/filex"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/google/uuid"
)

const IndexFileName = "dreams.json"

var ErrNotFound = errors.New("artifact not found")

// Repository is safe for concurrent use; mutations are serialized and each
// one rewrites the whole index.
type Repository struct {
	dir    string
	logger logging.Logger
	now    func() time.Time

	mu    sync.RWMutex
	items []models.DreamArtifact

	// moveFile and writeIndex are replaced in tests.
	moveFile   func(src, dst string) error
	writeIndex func(path string, data []byte, perm os.FileMode) error
}

// Open creates dir if needed and loads its index. A missing index is an
// empty repository.
func Open(dir string, logger logging.Logger) (*Repository, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		dir:        abs,
		logger:     logger.With("module", "artifacts"),
		now:        time.Now,
		moveFile:   filex.MoveFile,
		writeIndex: filex.WriteFileAtomic,
	}

	data, err := os.ReadFile(filepath.Join(abs, IndexFileName))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("read index: %w", err)
	}

	if err := json.Unmarshal(data, &r.items); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	sort.SliceStable(r.items, func(i, j int) bool { return r.items[i].CreatedAt.After(r.items[j].CreatedAt) })
	return r, nil
}

func (r *Repository) Dir() string { return r.dir }

// Persist moves the file at sourcePath into the repository and records it
// as the newest artifact. If the index cannot be written the file is moved
// back and the repository is left unchanged.
func (r *Repository) Persist(ctx context.Context, sourcePath, prompt string, interp *models.Interpretation,
	remoteURL string, palette [3]models.Color) (models.DreamArtifact, error) {
	if err := ctx.Err(); err != nil {
		return models.DreamArtifact{}, err
	}

	id := uuid.New()
	a := models.DreamArtifact{
		ID:             id,
		Prompt:         prompt,
		CreatedAt:      r.now().UTC(),
		MediaFileName:  id.String() + filepath.Ext(sourcePath),
		Palette:        palette,
		RemoteVideoURL: models.Ptr(remoteURL),
	}
	if interp != nil {
		a.InterpretationSummary = models.Ptr(interp.Summary)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dst := r.ResolveLocation(a)
	if err := r.moveFile(sourcePath, dst); err != nil {
		return models.DreamArtifact{}, fmt.Errorf("move media: %w", err)
	}

	items := append([]models.DreamArtifact{a}, r.items...)
	if err := r.flush(items); err != nil {
		if rerr := r.moveFile(dst, sourcePath); rerr != nil {
			r.logger.Error(ctx, "failed to restore media after index failure", "path", dst, "error", rerr)
		}
		return models.DreamArtifact{}, err
	}

	r.items = items
	r.logger.Debug(ctx, "artifact persisted", "id", a.ID, "file", a.MediaFileName)
	return a, nil
}

// Delete removes the artifact and its media. Missing media is ignored.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, a := range r.items {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	victim := r.items[idx]
	items := make([]models.DreamArtifact, 0, len(r.items)-1)
	items = append(items, r.items[:idx]...)
	items = append(items, r.items[idx+1:]...)

	if err := r.flush(items); err != nil {
		return err
	}
	r.items = items

	if err := os.Remove(r.ResolveLocation(victim)); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn(ctx, "failed to remove media", "id", id, "error", err)
	}
	return nil
}

// List returns the artifacts newest first.
func (r *Repository) List() []models.DreamArtifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.DreamArtifact(nil), r.items...)
}

func (r *Repository) Get(id uuid.UUID) (models.DreamArtifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.ID == id {
			return a, true
		}
	}
	return models.DreamArtifact{}, false
}

// ResolveLocation is the path of the artifact's media. The file may not
// exist.
func (r *Repository) ResolveLocation(a models.DreamArtifact) string {
	return filepath.Join(r.dir, a.MediaFileName)
}

func (r *Repository) flush(items []models.DreamArtifact) error {
	if items == nil {
		items = []models.DreamArtifact{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := r.writeIndex(filepath.Join(r.dir, IndexFileName), data, 0o600); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
