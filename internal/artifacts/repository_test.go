package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mediaFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

var palette = [3]models.Color{{R: 0.1, G: 0.2, B: 0.3}, {R: 0.4, G: 0.5, B: 0.6}, {R: 0.7, G: 0.8, B: 0.9}}

func TestOpen_EmptyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	r, err := Open(dir, logging.Nop())
	require.NoError(t, err)
	assert.Empty(t, r.List())

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestOpen_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("{"), 0o600))

	_, err := Open(dir, logging.Nop())
	require.Error(t, err)
}

func TestPersist_MovesAndIndexes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Open(dir, logging.Nop())
	require.NoError(t, err)

	src := mediaFile(t, "remote-1.mp4", "video")
	interp := &models.Interpretation{Summary: "Deniz huzuru simgeler.", Advice: "Dinlen."}

	a, err := r.Persist(ctx, src, "denizde yüzüyordum", interp, "https://cdn.example/v.mp4", palette)
	require.NoError(t, err)

	assert.Equal(t, a.ID.String()+".mp4", a.MediaFileName)
	require.NotNil(t, a.InterpretationSummary)
	assert.Equal(t, "Deniz huzuru simgeler.", *a.InterpretationSummary)
	require.NotNil(t, a.RemoteVideoURL)

	_, err = os.Stat(src)
	assert.ErrorIs(t, err, os.ErrNotExist)
	data, err := os.ReadFile(r.ResolveLocation(a))
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestPersist_NewestFirstAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Open(dir, logging.Nop())
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		r.now = func() time.Time { return at }
		a, err := r.Persist(ctx, mediaFile(t, "f.gif", "x"), "prompt", nil, "", palette)
		require.NoError(t, err)
		assert.Nil(t, a.RemoteVideoURL)
		assert.Nil(t, a.InterpretationSummary)
		ids = append(ids, a.ID)
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)

	reopened, err := Open(dir, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, list, reopened.List())
}

func TestPersist_IndexFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	r, err := Open(t.TempDir(), logging.Nop())
	require.NoError(t, err)

	src := mediaFile(t, "fallback.gif", "gif")
	r.writeIndex = func(string, []byte, os.FileMode) error { return errors.New("disk full") }

	_, err = r.Persist(ctx, src, "prompt", nil, "", palette)
	require.Error(t, err)

	assert.Empty(t, r.List())
	_, err = os.Stat(src)
	assert.NoError(t, err, "media is moved back")

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPersist_MissingSource(t *testing.T) {
	r, err := Open(t.TempDir(), logging.Nop())
	require.NoError(t, err)

	_, err = r.Persist(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "prompt", nil, "", palette)
	require.Error(t, err)
	assert.Empty(t, r.List())
}

func TestPersist_Cancelled(t *testing.T) {
	r, err := Open(t.TempDir(), logging.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Persist(ctx, mediaFile(t, "a.gif", "x"), "prompt", nil, "", palette)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Open(dir, logging.Nop())
	require.NoError(t, err)

	a, err := r.Persist(ctx, mediaFile(t, "a.gif", "x"), "first", nil, "", palette)
	require.NoError(t, err)
	b, err := r.Persist(ctx, mediaFile(t, "b.gif", "y"), "second", nil, "", palette)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, a.ID))
	_, err = os.Stat(r.ResolveLocation(a))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Media already gone is tolerated.
	require.NoError(t, os.Remove(r.ResolveLocation(b)))
	require.NoError(t, r.Delete(ctx, b.ID))
	assert.Empty(t, r.List())

	var index []models.DreamArtifact
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &index))
	assert.Empty(t, index)

	require.ErrorIs(t, r.Delete(ctx, uuid.New()), ErrNotFound)
}

func TestIndex_FieldNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Open(dir, logging.Nop())
	require.NoError(t, err)

	_, err = r.Persist(ctx, mediaFile(t, "a.mp4", "x"), "prompt",
		&models.Interpretation{Summary: "s"}, "https://cdn.example/a.mp4", palette)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, k := range []string{"id", "prompt", "created_at", "file_name", "palette", "interpretation", "remote_video_url"} {
		assert.Contains(t, raw[0], k)
	}
}
