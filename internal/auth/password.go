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

// Argon2id cost for the admin password hash. There is a single admin
// credential, so the cost is fixed rather than configurable: 64 MB of
// memory, 3 passes, 4 lanes.
const (
	argonMemory uint32 = 64 * 1024
	argonPasses uint32 = 3
	argonLanes  uint8  = 4
	saltLen            = 16
	keyLen      uint32 = 32
)

// ErrMalformedHash reports a stored hash that is not a valid argon2id
// PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// argonHash is a decoded PHC string. The cost is carried per hash so
// hashes created under older parameters keep verifying.
type argonHash struct {
	memory uint32
	passes uint32
	lanes  uint8
	salt   []byte
	key    []byte
}

// HashPassword derives an Argon2id hash of the password and encodes it
// as a PHC string, $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonPasses, argonMemory, argonLanes, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonPasses, argonLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches the encoded hash.
// The comparison is constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.passes, h.memory, h.lanes, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

func decodeHash(encoded string) (*argonHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	var h argonHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.passes, &h.lanes); err != nil {
		return nil, fmt.Errorf("%w: bad cost parameters %q", ErrMalformedHash, fields[3])
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: undecodable salt", ErrMalformedHash)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("%w: undecodable key", ErrMalformedHash)
	}

	return &h, nil
}
