// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package password hashes and verifies passwords with Argon2id.
//
// Hashes use the PHC string format
//
//	$argon2id$v=19$m=<memory KiB>,t=<iterations>,p=<parallelism>$<salt>$<key>
//
// with unpadded standard base64, so the salt and parameters travel with the
// hash and verification needs no extra input.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrHashing     = errors.New("password hashing failed")
	ErrInvalidHash = errors.New("invalid password hash")
)

// Params are the Argon2id cost parameters.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns the OWASP recommended parameters
// (64 MiB, 3 iterations, 2 lanes, 16 byte salt, 32 byte key).
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params
	random io.Reader
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithRandom sets the source for salts. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(h *Hasher) {
		h.random = r
	}
}

// New creates a Hasher. Zero salt and key lengths fall back to the defaults.
func New(params Params, opts ...Option) *Hasher {
	def := DefaultParams()
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	h := &Hasher{params: params, random: rand.Reader}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns the encoded hash of password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", fmt.Errorf("%w: salt: %w", ErrHashing, err)
	}

	key := argon2.IDKey([]byte(password), salt,
		h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Upper limits for parameters read from stored hashes. They are fixed so
// that lowering the configured cost never locks out existing users.
const (
	MaxMemoryKiB   = 1024 * 1024
	MaxIterations  = 16
	MaxParallelism = 16
)

// Verify reports whether password matches encoded. Malformed hashes and
// hashes with parameters above the fixed limits never match.
func (h *Hasher) Verify(encoded, password string) bool {
	params, salt, expected, err := decode(encoded)
	if err != nil || !withinBounds(params) {
		return false
	}

	key := argon2.IDKey([]byte(password), salt,
		params.Iterations, params.MemoryKiB, params.Parallelism, params.KeyLength)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

// withinBounds rejects parameters that would make verification
// arbitrarily expensive, independent of the configured cost.
func withinBounds(got Params) bool {
	switch {
	case got.MemoryKiB > MaxMemoryKiB,
		got.Iterations > MaxIterations,
		got.Parallelism > MaxParallelism,
		got.SaltLength < 8 || got.SaltLength > 64,
		got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),        //nolint:gosec // checked above
		SaltLength:  uint32(len(salt)), //nolint:gosec // bounded by withinBounds
		KeyLength:   uint32(len(key)),  //nolint:gosec // bounded by withinBounds
	}, salt, key, nil
}
