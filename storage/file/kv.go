// Package filestore persists login state in a single JSON document on disk, optionally sealing
// every value with XChaCha20-Poly1305. It suits a CLI whose login and callback run in one process
// and that wants tokens to survive restarts.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
)

type entry struct {
	Value   []byte    `json:"v"`
	Expires time.Time `json:"e,omitempty"`
}

// KV is a file-backed key-value store with TTL support.
type KV struct {
	mu   sync.Mutex
	path string
	aead aeadCipher
	now  func() time.Time
}

type aeadCipher interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// Option configures a KV.
type Option func(*KV) error

// WithEncryptionKey seals values with a 32-byte key.
func WithEncryptionKey(key []byte) Option {
	return func(k *KV) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return fmt.Errorf("[filestore WithEncryptionKey] %w", err)
		}
		k.aead = aead
		return nil
	}
}

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(k *KV) error {
		k.now = now
		return nil
	}
}

func NewKV(path string, opts ...Option) (*KV, error) {
	k := &KV{path: path, now: time.Now}
	for _, opt := range opts {
		if err := opt(k); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	doc, err := k.load()
	if err != nil {
		return nil, false, err
	}
	return k.lookup(doc, key)
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	doc, err := k.load()
	if err != nil {
		return err
	}
	sealed, err := k.seal(value)
	if err != nil {
		return err
	}
	e := entry{Value: sealed}
	if ttl > 0 {
		e.Expires = k.now().Add(ttl)
	}
	doc[key] = e
	return k.save(doc)
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	doc, err := k.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return k.save(doc)
}

func (k *KV) Take(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	doc, err := k.load()
	if err != nil {
		return nil, false, err
	}
	v, ok, err := k.lookup(doc, key)
	if _, present := doc[key]; present {
		delete(doc, key)
		if saveErr := k.save(doc); saveErr != nil {
			return nil, false, saveErr
		}
	}
	return v, ok, err
}

func (k *KV) lookup(doc map[string]entry, key string) ([]byte, bool, error) {
	e, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	if !e.Expires.IsZero() && k.now().After(e.Expires) {
		return nil, false, nil
	}
	v, err := k.open(e.Value)
	if err != nil {
		// Sealed with another key, or damaged on disk.
		log.Warn().Err(err).Str("key", key).Msg("Ignoring value that does not open")
		return nil, false, nil
	}
	return v, true, nil
}

// load returns an empty document when the file does not exist yet. A file that is not valid JSON
// is logged and treated the same way; the next save overwrites it.
func (k *KV) load() (map[string]entry, error) {
	doc := make(map[string]entry)
	b, err := os.ReadFile(k.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[filestore load] %w", err)
	}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		log.Warn().Err(err).Str("file", k.path).Msg("Ignoring unreadable store file")
		return make(map[string]entry), nil
	}
	now := k.now()
	for key, e := range doc {
		if !e.Expires.IsZero() && now.After(e.Expires) {
			delete(doc, key)
		}
	}
	return doc, nil
}

func (k *KV) save(doc map[string]entry) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("[filestore save] %w", err)
	}
	return atomicWriteFile(k.path, b, 0o600)
}

func (k *KV) seal(plain []byte) ([]byte, error) {
	if k.aead == nil {
		return append([]byte(nil), plain...), nil
	}
	nonce := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(plain)+k.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("[filestore seal] nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plain, nil), nil
}

func (k *KV) open(sealed []byte) ([]byte, error) {
	if k.aead == nil {
		return sealed, nil
	}
	ns := k.aead.NonceSize()
	if len(sealed) < ns {
		return nil, errors.New("[filestore open] sealed value too short")
	}
	plain, err := k.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("[filestore open] %w", err)
	}
	return plain, nil
}

// atomicWriteFile writes to a temp file in the same directory and renames it over path.
func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
