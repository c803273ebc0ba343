package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters fixed by §3 to avoid silent downgrade.
const (
	argonMemoryKiB  = 19456
	argonIterations = 2
	argonThreads    = 1
	argonSaltLen    = 16
	argonKeyLen     = 32
)

// ErrInvalidHash is returned when a stored hash does not match the
// expected $argon2id$... format.
var ErrInvalidHash = errors.New("auth: invalid password hash")

// HashPassword returns an encoded Argon2id hash of password in the form
// $argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>, per §4.7.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonIterations, argonMemoryKiB, argonThreads, argonKeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(key)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemoryKiB, argonIterations, argonThreads, encodedSalt, encodedKey), nil
}

// VerifyPassword reports whether password matches the given encoded
// Argon2id hash, using a constant-time comparison of the derived key.
func VerifyPassword(encodedHash, password string) (bool, error) {
	version, memory, iterations, threads, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	if version != argon2.Version {
		return false, ErrInvalidHash
	}
	candidate := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

func decodeHash(encoded string) (version int, memory, iterations uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, 0, nil, nil, ErrInvalidHash
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &p); err != nil {
		return 0, 0, 0, 0, nil, nil, ErrInvalidHash
	}
	threads = uint8(p)
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return 0, 0, 0, 0, nil, nil, ErrInvalidHash
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return 0, 0, 0, 0, nil, nil, ErrInvalidHash
	}
	return version, memory, iterations, threads, salt, key, nil
}
