// Package auth handles channel secrets: generating them, deriving the public
// channel id a secret controls, and checking a presented secret against a
// channel id. A master proves it may broadcast on a channel by presenting the
// secret whose hash is the channel id.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"
	"golang.org/x/term"
)

// Algorithm names a secret → channel id hashing scheme.
type Algorithm string

const (
	AlgorithmMD5      Algorithm = "md5"
	AlgorithmSHA512   Algorithm = "sha512"
	AlgorithmSHA3     Algorithm = "sha3-512"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultAlgorithm is md5, which browser-side followers of the reference
// multiplex protocol expect.
const DefaultAlgorithm = AlgorithmMD5

// DefaultSecretLength is the number of random characters in a generated secret.
const DefaultSecretLength = 16

// ErrUnknownAlgorithm is returned for algorithm names not listed in Algorithms.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ErrArgon2Params is returned for argon2id channel ids whose cost parameters,
// salt or key length differ from the ones this package produces.
var ErrArgon2Params = errors.New("unsupported argon2id parameters")

// ErrEmptySecret is returned when an empty secret is presented or entered.
var ErrEmptySecret = errors.New("secret cannot be empty")

// Algorithms returns every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmMD5, AlgorithmSHA512, AlgorithmSHA3, AlgorithmArgon2id}
}

// ParseAlgorithm validates an algorithm name. An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	for _, alg := range Algorithms() {
		if strings.EqualFold(name, string(alg)) {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSecret returns n characters drawn uniformly from [a-zA-Z0-9].
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		n = DefaultSecretLength
	}
	max := big.NewInt(int64(len(secretAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate secret: %w", err)
		}
		sb.WriteByte(secretAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// ChannelID derives the channel id controlled by secret. Digest algorithms
// are deterministic; argon2id embeds a random salt, so each call yields a
// different id that still verifies against the same secret.
func ChannelID(secret string, alg Algorithm) (string, error) {
	if alg == AlgorithmArgon2id {
		return hashArgon2id(secret)
	}
	h, err := newDigest(alg)
	if err != nil {
		return "", err
	}
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether secret controls channelID under alg.
func Verify(secret, channelID string, alg Algorithm) (bool, error) {
	if secret == "" {
		return false, ErrEmptySecret
	}
	if alg == AlgorithmArgon2id {
		return verifyArgon2id(secret, channelID)
	}
	expected, err := ChannelID(secret, alg)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(channelID))) == 1, nil
}

func newDigest(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case AlgorithmMD5:
		return md5.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	case AlgorithmSHA3:
		return sha3.New512(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

// Argon2id parameters. The relay verifies on publish, so memory is kept
// well below password-storage settings.
const (
	argonTime    = 2
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	saltLength   = 16
)

// hashArgon2id returns $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>.
func hashArgon2id(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

func verifyArgon2id(secret, encoded string) (bool, error) {
	params, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(secret), salt, params.time, params.memory, params.threads, params.keyLen)
	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

func decodeArgon2id(encoded string) (*argonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, fmt.Errorf("invalid argon2id channel id: expected 6 parts, got %d", len(parts))
	}
	if parts[1] != "argon2id" {
		return nil, nil, nil, fmt.Errorf("invalid argon2id channel id: algorithm %q", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version format: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid params format: %w", err)
	}
	// Channel ids arrive from unauthenticated publishers; only ids this
	// package could have produced are accepted.
	if p.memory != argonMemory || p.time != argonTime || p.threads != argonThreads ||
		parts[3] != fmt.Sprintf("m=%d,t=%d,p=%d", argonMemory, argonTime, argonThreads) {
		return nil, nil, nil, fmt.Errorf("%w: m=%d,t=%d,p=%d", ErrArgon2Params, p.memory, p.time, p.threads)
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	if len(salt) != saltLength {
		return nil, nil, nil, fmt.Errorf("%w: salt length %d", ErrArgon2Params, len(salt))
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(key) != argonKeyLen {
		return nil, nil, nil, fmt.Errorf("%w: key length %d", ErrArgon2Params, len(key))
	}
	p.keyLen = argonKeyLen

	return &p, salt, key, nil
}

// Channel is everything a presentation needs to join a channel as master.
type Channel struct {
	Secret string `yaml:"secret"`
	ID     string `yaml:"channel_id"`
	URL    string `yaml:"relay_address"`
}

// NewChannel generates a fresh secret of length n and derives its channel id.
func NewChannel(n int, alg Algorithm, relayURL string) (*Channel, error) {
	secret, err := GenerateSecret(n)
	if err != nil {
		return nil, err
	}
	id, err := ChannelID(secret, alg)
	if err != nil {
		return nil, err
	}
	return &Channel{Secret: secret, ID: id, URL: relayURL}, nil
}

// PromptSecret reads a secret from the terminal without echoing it.
func PromptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	return string(secret), nil
}
