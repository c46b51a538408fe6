package securestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	db, err := dbx.Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestSealedStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, ":memory:")

	s, err := OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)

	_, found, err := s.Int(ctx, KeyCreditBalance)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetInt(ctx, KeyCreditBalance, 25))
	v, found, err := s.Int(ctx, KeyCreditBalance)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 25, v)

	require.NoError(t, s.Delete(ctx, KeyCreditBalance))
	_, found, err = s.Int(ctx, KeyCreditBalance)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSealedStore_ValuesAreNotPlaintext(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, ":memory:")

	s, err := OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, KeyCreditBalance, 12345))

	raw, _, err := metadata.NewSQLiteRepository(db).Get(ctx, KeyCreditBalance)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "12345")
}

func TestSealedStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	db := openDB(t, dsn)
	s, err := OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, KeyDemoUsage, 2))
	require.NoError(t, db.Close())

	db = openDB(t, dsn)
	s, err = OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)
	v, found, err := s.Int(ctx, KeyDemoUsage)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestSealedStore_DetectsSwappedValues(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, ":memory:")
	repo := metadata.NewSQLiteRepository(db)

	s, err := OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)
	require.NoError(t, s.SetInt(ctx, KeyCreditBalance, 0))
	require.NoError(t, s.SetInt(ctx, KeyDemoUsage, 100))

	demo, _, err := repo.Get(ctx, KeyDemoUsage)
	require.NoError(t, err)
	require.NoError(t, repo.Set(ctx, KeyCreditBalance, demo))

	_, _, err = s.Int(ctx, KeyCreditBalance)
	assert.ErrorIs(t, err, ErrTampered)
}

func TestOpenSealed_WrongSecret(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, ":memory:")

	_, err := OpenSealed(ctx, db, []byte("device"))
	require.NoError(t, err)

	_, err = OpenSealed(ctx, db, []byte("another device"))
	assert.ErrorIs(t, err, ErrKeyMismatch)

	_, err = OpenSealed(ctx, db, nil)
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	var s CounterStore = NewMemoryStore()

	_, found, err := s.Int(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetInt(ctx, "k", 3))
	v, found, err := s.Int(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, _ = s.Int(ctx, "k")
	assert.False(t, found)
}
