package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/profile-service/internal/config"
)

// ErrEmptyPassword is returned when hashing an empty plaintext.
var ErrEmptyPassword = errors.New("password must not be empty")

const (
	argon2SaltLength = 16
	argon2KeyLength  = 32
	argon2Prefix     = "$argon2id$"
)

// PasswordHasher produces and checks salted one-way digests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// Argon2Params tunes argon2id hashing.
type Argon2Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
}

type bcryptHasher struct {
	cost int
}

func (h bcryptHasher) Hash(plain string) (string, error) {
	return HashPassword(plain, h.cost)
}

func (h bcryptHasher) Verify(plain, digest string) bool {
	return ComparePassword(digest, plain) == nil
}

type argon2Hasher struct {
	params Argon2Params
}

func (h argon2Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h argon2Hasher) Verify(plain, digest string) bool {
	params, salt, key, err := parseArgon2Digest(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(plain), salt, params.Time, params.MemoryKB, params.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1
}

// parseArgon2Digest reads a PHC string: $argon2id$v=19$m=..,t=..,p=..$salt$key
func parseArgon2Digest(digest string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, errors.New("invalid argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, errors.New("unsupported argon2 version")
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKB, &params.Time, &params.Parallelism); err != nil {
		return params, nil, nil, errors.New("invalid argon2 parameters")
	}
	if params.MemoryKB == 0 || params.Time == 0 || params.Parallelism == 0 {
		return params, nil, nil, errors.New("invalid argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, errors.New("invalid argon2 key")
	}
	return params, salt, key, nil
}

// multiHasher hashes with one algorithm and verifies any supported digest format.
type multiHasher struct {
	primary PasswordHasher
	bcrypt  bcryptHasher
	argon2  argon2Hasher
}

// NewPasswordHasher builds the hasher selected by configuration.
func NewPasswordHasher(cfg config.AuthConfig) (PasswordHasher, error) {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	params := Argon2Params{MemoryKB: cfg.Argon2MemoryKB, Time: cfg.Argon2Time, Parallelism: cfg.Argon2Parallelism}
	if params.MemoryKB == 0 {
		params.MemoryKB = 64 * 1024
	}
	if params.Time == 0 {
		params.Time = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 2
	}

	h := &multiHasher{bcrypt: bcryptHasher{cost: cost}, argon2: argon2Hasher{params: params}}
	switch cfg.PasswordAlgorithm {
	case "", config.PasswordBcrypt:
		h.primary = h.bcrypt
	case config.PasswordArgon2id:
		h.primary = h.argon2
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.PasswordAlgorithm)
	}
	return h, nil
}

func (h *multiHasher) Hash(plain string) (string, error) {
	return h.primary.Hash(plain)
}

func (h *multiHasher) Verify(plain, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return h.argon2.Verify(plain, digest)
	case strings.HasPrefix(digest, "$2"):
		return h.bcrypt.Verify(plain, digest)
	default:
		return false
	}
}
