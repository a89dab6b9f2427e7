package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inboxpilot/internal/common"
	"github.com/dmitrijs2005/inboxpilot/internal/cryptox"
)

const (
	// SaltKey holds the argon2 salt in the wrapped store, unsealed.
	SaltKey = "inboxpilot.salt"
	// VerifierKey holds a known value sealed with the key, so a wrong
	// passphrase is caught on open instead of on the first read.
	VerifierKey = "inboxpilot.verifier"
)

var ErrWrongPassphrase = errors.New("wrong store passphrase")

var verifierPlain = []byte("inboxpilot")

type Sealed struct {
	inner Storage
	key   []byte
}

// NewSealed derives the sealing key from passphrase and the salt kept in
// inner, generating the salt and verifier on first use. It returns
// ErrWrongPassphrase when the stored verifier does not open with the key.
func NewSealed(ctx context.Context, inner Storage, passphrase []byte) (*Sealed, error) {
	salt, err := inner.Get(ctx, SaltKey)
	if errors.Is(err, common.ErrNotFound) {
		salt, err = cryptox.RandomBytes(cryptox.SaltSize)
		if err != nil {
			return nil, err
		}
		if err := inner.Set(ctx, SaltKey, salt); err != nil {
			return nil, fmt.Errorf("store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	s := &Sealed{inner: inner, key: cryptox.DeriveKey(passphrase, salt)}
	if err := s.verify(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sealed) verify(ctx context.Context) error {
	sealed, err := s.inner.Get(ctx, VerifierKey)
	if errors.Is(err, common.ErrNotFound) {
		if err := s.Set(ctx, VerifierKey, verifierPlain); err != nil {
			return fmt.Errorf("store verifier: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load verifier: %w", err)
	}

	plain, err := cryptox.Open(sealed, s.key)
	if err != nil || !bytes.Equal(plain, verifierPlain) {
		return ErrWrongPassphrase
	}
	return nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := cryptox.Open(sealed, s.key)
	if err != nil {
		return nil, fmt.Errorf("unseal kv[%s]: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(value, s.key)
	if err != nil {
		return fmt.Errorf("seal kv[%s]: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Sealed) Remove(ctx context.Context, keys ...string) error {
	return s.inner.Remove(ctx, keys...)
}

func (s *Sealed) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.inner.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k != SaltKey && k != VerifierKey {
			out = append(out, k)
		}
	}
	return out, nil
}
