package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	hashScheme        = "pa1"
	hashRounds        = 200_000
	minHashRounds     = 100_000
	saltSize          = 16
	minPasswordLength = 12
)

var (
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errBadHash      = errors.New("malformed password hash")
)

var b64 = base64.RawStdEncoding

// passwordHash is the decoded form of "pa1$<rounds>$<salt>$<digest>".
type passwordHash struct {
	rounds int
	salt   []byte
	digest []byte
}

func (h passwordHash) String() string {
	return strings.Join([]string{hashScheme, strconv.Itoa(h.rounds), b64.EncodeToString(h.salt), b64.EncodeToString(h.digest)}, "$")
}

func parsePasswordHash(encoded string) (passwordHash, error) {
	scheme, rest, ok := strings.Cut(encoded, "$")
	if !ok || scheme != hashScheme {
		return passwordHash{}, errBadHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return passwordHash{}, errBadHash
	}
	rounds, err := strconv.Atoi(fields[0])
	if err != nil || rounds < minHashRounds {
		return passwordHash{}, errBadHash
	}
	salt, err := b64.DecodeString(fields[1])
	if err != nil || len(salt) == 0 {
		return passwordHash{}, errBadHash
	}
	digest, err := b64.DecodeString(fields[2])
	if err != nil || len(digest) != sha256.Size {
		return passwordHash{}, errBadHash
	}
	return passwordHash{rounds: rounds, salt: salt, digest: digest}, nil
}

// HashPassword rejects passwords shorter than twelve runes.
func HashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h := passwordHash{rounds: hashRounds, salt: salt}
	h.digest = stretch(password, salt, hashRounds)
	return h.String(), nil
}

func VerifyPassword(password, encoded string) bool {
	h, err := parsePasswordHash(encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(stretch(password, h.salt, h.rounds), h.digest) == 1
}

// stretch chains HMAC-SHA256 keyed by the password over the salt and the
// previous block.
func stretch(password string, salt []byte, rounds int) []byte {
	mac := hmac.New(sha256.New, []byte(password))
	block := salt
	for i := 0; i < rounds; i++ {
		mac.Reset()
		mac.Write(block)
		mac.Write(salt)
		block = mac.Sum(nil)
	}
	return block
}

// Credentials guards the upload API with a single operator account. Only the
// password hash is kept in memory.
type Credentials struct {
	username string
	hash     string
}

func NewCredentials(username, password string) (*Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Credentials{username: username, hash: hash}, nil
}

func (c *Credentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(c.username)) == 1
	passOK := VerifyPassword(password, c.hash)
	return userOK && passOK
}
