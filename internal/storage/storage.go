// Package storage implements the wallet-scoped encrypted key/value store
// the wallet service persists identity, notes, and dedup sets through.
// Grounded on zerocash/ledger.go (SaveToFile/LoadLedgerFromFile JSON-file
// persistence) and internal/zerocash/api.go's Wallet.Save/LoadWallet, but
// upgraded to the spec's mandatory at-rest encryption: AES-GCM with a
// per-wallet salt and a PBKDF2-derived key (SHA-256, >=100,000 iterations,
// 256-bit key) — "the core refuses to write secrets in plaintext" (§4.7).
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/notfartdev/zdoge-sub004/internal/walleterr"
)

const (
	pbkdf2Iterations = 100_000
	keyLenBytes      = 32
	saltLenBytes     = 16
)

// Store is a typed key/value store the wallet core writes through.
// Keys are namespaced strings ("identity", "notes", "processed_transfers",
// "processed_unshields", "swap_tokens_config"); values are opaque bytes
// the caller has already serialized (typically JSON).
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileStore persists an encrypted blob per wallet address under a base
// directory, one file per key. Each file is self-contained: salt + nonce +
// ciphertext, so the passphrase-derived key never needs a separate
// manifest.
type FileStore struct {
	dir        string
	passphrase []byte
}

// NewFileStore opens (creating if absent) a FileStore rooted at
// baseDir/walletAddress, encrypting every value with a key derived from
// passphrase.
func NewFileStore(baseDir, walletAddress string, passphrase []byte) (*FileStore, error) {
	dir := filepath.Join(baseDir, walletAddress)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, walleterr.Wrap(walleterr.StorageUnavailable, "create wallet storage dir", err)
	}
	return &FileStore{dir: dir, passphrase: passphrase}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".enc")
}

type envelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

func (f *FileStore) Get(key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, walleterr.Wrap(walleterr.StorageUnavailable, "read "+key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, walleterr.Wrap(walleterr.StorageUnavailable, "decode envelope for "+key, err)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, false, walleterr.Wrap(walleterr.StorageUnavailable, "decode salt for "+key, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, false, walleterr.Wrap(walleterr.StorageUnavailable, "decode nonce for "+key, err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, false, walleterr.Wrap(walleterr.StorageUnavailable, "decode ciphertext for "+key, err)
	}
	plain, err := decrypt(f.passphrase, salt, nonce, ct)
	if err != nil {
		return nil, false, walleterr.Wrap(walleterr.DecryptionFailed, "decrypt "+key, err)
	}
	return plain, true, nil
}

func (f *FileStore) Set(key string, value []byte) error {
	salt := make([]byte, saltLenBytes)
	if _, err := rand.Read(salt); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "draw salt", err)
	}
	nonce, ct, err := encrypt(f.passphrase, salt, value)
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "encrypt "+key, err)
	}
	env := envelope{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "marshal envelope for "+key, err)
	}
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "write "+key, err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		return walleterr.Wrap(walleterr.StorageUnavailable, "commit "+key, err)
	}
	return nil
}

func (f *FileStore) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return walleterr.Wrap(walleterr.StorageUnavailable, "delete "+key, err)
	}
	return nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, pbkdf2Iterations, keyLenBytes, sha256.New)
}

func encrypt(passphrase, salt, plaintext []byte) (nonce, ciphertext []byte, err error) {
	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

func decrypt(passphrase, salt, nonce, ciphertext []byte) ([]byte, error) {
	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("storage: malformed nonce length %d", len(nonce))
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// InMemoryStore is a non-persistent Store used for tests and for the
// dedup sets' degrade-to-memory mode when StorageUnavailable is
// non-fatal (§7: "storage unavailability degrades to in-memory only
// for the dedup sets").
type InMemoryStore struct {
	data map[string][]byte
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

func (m *InMemoryStore) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *InMemoryStore) Set(key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *InMemoryStore) Delete(key string) error {
	delete(m.data, key)
	return nil
}
