// internal/auth/token.go
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var (
	ErrEmptyToken    = errors.New("token is empty")
	ErrMalformedHash = errors.New("malformed token hash")
)

// HashToken generates a salted Argon2id hash of token, encoded as
// "hash:salt" in standard base64.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.StdEncoding.EncodeToString(hash) + ":" + base64.StdEncoding.EncodeToString(salt), nil
}

// VerifyToken compares token with an encoded hash from HashToken.
func VerifyToken(token, encoded string) (bool, error) {
	hashPart, saltPart, ok := strings.Cut(encoded, ":")
	if !ok {
		return false, ErrMalformedHash
	}

	decodedHash, err := base64.StdEncoding.DecodeString(hashPart)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}
	decodedSalt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	if len(decodedHash) == 0 || len(decodedSalt) == 0 {
		return false, ErrMalformedHash
	}

	comparison := argon2.IDKey([]byte(token), decodedSalt, argonTime, argonMemory, argonThreads, uint32(len(decodedHash)))
	return subtle.ConstantTimeCompare(decodedHash, comparison) == 1, nil
}

// Verifier checks bearer tokens against one configured hash. Verified
// tokens are remembered so repeat requests skip the key derivation.
type Verifier struct {
	encoded string
	ok      sync.Map
}

func NewVerifier(encoded string) (*Verifier, error) {
	if _, err := VerifyToken("", encoded); err != nil {
		return nil, err
	}
	return &Verifier{encoded: encoded}, nil
}

func (v *Verifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	if _, hit := v.ok.Load(token); hit {
		return true
	}
	match, err := VerifyToken(token, v.encoded)
	if err != nil || !match {
		return false
	}
	v.ok.Store(token, struct{}{})
	return true
}
