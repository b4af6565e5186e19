package sessionstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"church-admin-gateway/internal/domain"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

const (
	hashKeyLen  = 64
	blockKeyLen = 32
)

// EncryptedStore implements domain.SessionStore on top of a SessionBackend.
// Values are JSON-encoded, encrypted with AES and authenticated with
// HMAC-SHA256; the storage key is bound into the MAC.
//
// The keys live in this process, so this protects the backend's contents
// from casual inspection only.
type EncryptedStore struct {
	backend domain.SessionBackend
	codecs  []securecookie.Codec
	ttl     time.Duration
	logger  *slog.Logger
}

// Options configures an EncryptedStore.
type Options struct {
	Secret         string
	PreviousSecret string
	TTL            time.Duration
}

// NewEncryptedStore derives codec keys from the secrets and returns a store.
func NewEncryptedStore(backend domain.SessionBackend, opts Options, logger *slog.Logger) (*EncryptedStore, error) {
	if opts.Secret == "" {
		return nil, errors.New("session secret is required")
	}

	current, err := newCodec(opts.Secret, opts.TTL)
	if err != nil {
		return nil, err
	}
	codecs := []securecookie.Codec{current}

	if opts.PreviousSecret != "" {
		previous, err := newCodec(opts.PreviousSecret, opts.TTL)
		if err != nil {
			return nil, err
		}
		codecs = append(codecs, previous)
	}

	return &EncryptedStore{
		backend: backend,
		codecs:  codecs,
		ttl:     opts.TTL,
		logger:  logger,
	}, nil
}

func newCodec(secret string, ttl time.Duration) (*securecookie.SecureCookie, error) {
	hashKey, blockKey, err := deriveKeys(secret)
	if err != nil {
		return nil, err
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxLength(0)
	codec.MaxAge(int(ttl / time.Second))
	return codec, nil
}

// deriveKeys expands one secret into independent MAC and cipher keys.
func deriveKeys(secret string) ([]byte, []byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("church-admin-gateway session store"))
	hashKey := make([]byte, hashKeyLen)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("derive hash key: %w", err)
	}
	blockKey := make([]byte, blockKeyLen)
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("derive block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// Store encrypts value and writes it under key. Failures are logged only.
func (s *EncryptedStore) Store(ctx context.Context, key string, value any) {
	encoded, err := securecookie.EncodeMulti(key, value, s.codecs...)
	if err != nil {
		s.logger.WarnContext(ctx, "session store encode failed", "key", key, "error", err)
		return
	}
	if err := s.backend.Set(ctx, key, encoded, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "session store write failed", "key", key, "error", err)
	}
}

// Retrieve decrypts the value at key into dst. A missing key is (false, nil).
func (s *EncryptedStore) Retrieve(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return false, nil
	}

	if err := securecookie.DecodeMulti(key, raw, dst, s.codecs...); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCorruptedSessionData, err)
	}
	return true, nil
}

// Remove deletes key. Deleting a missing key is not an error.
func (s *EncryptedStore) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "session store delete failed", "key", key, "error", err)
	}
}

// Ping reports whether the backend is reachable.
func (s *EncryptedStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
