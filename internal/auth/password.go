package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashParams tunes Argon2id.
type HashParams struct {
	Time       uint32
	Memory     uint32 // KiB
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// DefaultHashParams is used for admin passwords.
var DefaultHashParams = HashParams{
	Time:       3,
	Memory:     64 * 1024,
	Threads:    2,
	KeyLength:  32,
	SaltLength: 16,
}

var errBadHash = errors.New("auth: invalid password hash")

// HashPassword encodes password as argon2id$t$m$p$salt$hash.
func HashPassword(password string, params HashParams) (string, error) {
	if params == (HashParams{}) {
		params = DefaultHashParams
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLength)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Time, params.Memory, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches an encoded hash.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false, errBadHash
	}
	t, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return false, fmt.Errorf("%w: time: %v", errBadHash, err)
	}
	m, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return false, fmt.Errorf("%w: memory: %v", errBadHash, err)
	}
	p, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil || p == 0 {
		return false, fmt.Errorf("%w: threads", errBadHash)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", errBadHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", errBadHash, err)
	}
	got := argon2.IDKey([]byte(password), salt, uint32(t), uint32(m), uint8(p), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
