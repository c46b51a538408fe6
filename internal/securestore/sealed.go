package securestore

import (
	"bytes"
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ruya/internal/cryptox"
	"github.com/dmitrijs2005/ruya/internal/dbx"
	"github.com/dmitrijs2005/ruya/internal/repositories/metadata"
)

const (
	saltKey     = "securestore.salt"
	verifierKey = "securestore.verifier"
	saltSize    = 16
)

// SealedStore seals every value with AES-GCM before writing it to the
// metadata table. The entry key is bound as additional data, so swapping
// two sealed blobs between keys is detected as tampering.
type SealedStore struct {
	repo metadata.Repository
	key  []byte
}

// OpenSealed derives the sealing key from secret and a per-database salt,
// creating the salt and key verifier on first use.
func OpenSealed(ctx context.Context, db *sql.DB, secret []byte) (*SealedStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty device secret")
	}

	var key []byte
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)

		salt, err := loadOrCreate(ctx, repo, saltKey, func() ([]byte, error) {
			return cryptox.RandomBytes(saltSize)
		})
		if err != nil {
			return fmt.Errorf("salt: %w", err)
		}

		key = cryptox.DeriveKey(secret, salt)

		verifier, err := loadOrCreate(ctx, repo, verifierKey, func() ([]byte, error) {
			return cryptox.MakeVerifier(key), nil
		})
		if err != nil {
			return fmt.Errorf("verifier: %w", err)
		}
		if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) != 1 {
			return ErrKeyMismatch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SealedStore{repo: metadata.NewSQLiteRepository(db), key: key}, nil
}

func loadOrCreate(ctx context.Context, repo metadata.Repository, name string, gen func() ([]byte, error)) ([]byte, error) {
	v, found, err := repo.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}

	v, err = gen()
	if err != nil {
		return nil, err
	}
	if err := repo.Set(ctx, name, v); err != nil {
		return nil, err
	}
	return bytes.Clone(v), nil
}

func (s *SealedStore) Int(ctx context.Context, key string) (int, bool, error) {
	blob, found, err := s.repo.Get(ctx, key)
	if err != nil || !found {
		return 0, false, err
	}

	var v int
	if err := cryptox.Open(blob, s.key, []byte(key), &v); err != nil {
		return 0, false, fmt.Errorf("%w: %s", ErrTampered, key)
	}
	return v, true, nil
}

func (s *SealedStore) SetInt(ctx context.Context, key string, value int) error {
	blob, err := cryptox.Seal(value, s.key, []byte(key))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.repo.Set(ctx, key, blob)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}
