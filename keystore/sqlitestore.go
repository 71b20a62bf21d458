package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists identity blobs in a SQLite database, encrypted at
// rest under a master key. Grounded on keysaver-server/storage.go's
// database/sql + modernc.org/sqlite + chacha20poly1305.NewX pattern for
// encrypted blob columns.
type SQLiteStore struct {
	db        *sql.DB
	masterKey [32]byte
}

// OpenSQLiteStore opens (creating if necessary) a SQLite-backed store at
// dbPath, deriving its master key from masterKeyStr the same way
// keysaver-server.NewStorage does.
func OpenSQLiteStore(dbPath, masterKeyStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &SQLiteStore{db: db, masterKey: sha256.Sum256([]byte(masterKeyStr))}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS identity_blobs (
		key TEXT PRIMARY KEY,
		value_encrypted BLOB NOT NULL
	);`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) encrypt(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.masterKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *SQLiteStore) decrypt(blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("encrypted blob too short")
	}
	aead, err := chacha20poly1305.NewX(s.masterKey[:])
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, nil)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var encrypted []byte
	err := s.db.QueryRowContext(ctx, `SELECT value_encrypted FROM identity_blobs WHERE key = ?`, key).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query blob %s: %w", key, err)
	}
	plain, err := s.decrypt(encrypted)
	if err != nil {
		// A corrupt blob is treated as "not present" (spec §7): the caller
		// regenerates rather than failing hard.
		return nil, false, nil
	}
	return plain, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	encrypted, err := s.encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt blob %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO identity_blobs (key, value_encrypted) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value_encrypted = excluded.value_encrypted`,
		key, encrypted)
	if err != nil {
		return fmt.Errorf("store blob %s: %w", key, err)
	}
	return nil
}
