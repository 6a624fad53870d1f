package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const formatVersion byte = 1

var (
	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	// ErrUnknownKey is returned when ciphertext names a key id the keyring lacks.
	ErrUnknownKey = errors.New("unknown encryption key id")
	// ErrMalformed is returned for truncated or foreign ciphertext.
	ErrMalformed = errors.New("malformed ciphertext")
	// ErrDecrypt is returned when authentication of the sealed payload fails.
	ErrDecrypt = errors.New("decryption failed")
)

// Keyring encrypts with its primary key and decrypts with any key it holds. It is safe
// for concurrent use once built.
type Keyring struct {
	primary byte
	aeads   map[byte]aead
}

type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// New returns a single-key keyring using key id 1.
func New(key []byte) (*Keyring, error) {
	return NewKeyring(1, map[byte][]byte{1: key})
}

// NewKeyring builds a keyring from id→key pairs; primary must be one of the ids.
func NewKeyring(primary byte, keys map[byte][]byte) (*Keyring, error) {
	if _, ok := keys[primary]; !ok {
		return nil, fmt.Errorf("%w: primary id %d", ErrUnknownKey, primary)
	}

	k := &Keyring{primary: primary, aeads: make(map[byte]aead, len(keys))}
	for id, key := range keys {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w (id %d)", ErrInvalidKey, id)
		}
		a, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, err
		}
		k.aeads[id] = a
	}
	return k, nil
}

// ParseKeyring reads the "id:base64key,id:base64key" form used in configuration. The
// first entry is the primary key.
func ParseKeyring(spec string) (*Keyring, error) {
	entries := strings.Split(strings.TrimSpace(spec), ",")
	keys := make(map[byte][]byte, len(entries))
	var primary byte

	for i, entry := range entries {
		idPart, keyPart, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %d must be id:key", ErrInvalidKey, i)
		}
		id, err := strconv.ParseUint(idPart, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: bad key id %q", ErrInvalidKey, idPart)
		}
		key, err := base64.StdEncoding.DecodeString(keyPart)
		if err != nil {
			return nil, fmt.Errorf("%w: key %d is not base64", ErrInvalidKey, id)
		}
		if i == 0 {
			primary = byte(id)
		}
		keys[byte(id)] = key
	}

	return NewKeyring(primary, keys)
}

// GenerateKey returns a fresh random 32-byte key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt seals plaintext under the primary key. The header bytes are bound as
// associated data.
func (k *Keyring) Encrypt(plaintext []byte) ([]byte, error) {
	a := k.aeads[k.primary]

	header := []byte{formatVersion, k.primary}
	out := make([]byte, len(header)+chacha20poly1305.NonceSizeX, len(header)+chacha20poly1305.NonceSizeX+len(plaintext)+chacha20poly1305.Overhead)
	copy(out, header)
	nonce := out[len(header):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return a.Seal(out, nonce, plaintext, header), nil
}

// Decrypt opens ciphertext produced by any key in the ring.
func (k *Keyring) Decrypt(ciphertext []byte) ([]byte, error) {
	const headerLen = 2
	if len(ciphertext) < headerLen+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrMalformed
	}
	if ciphertext[0] != formatVersion {
		return nil, ErrMalformed
	}
	a, ok := k.aeads[ciphertext[1]]
	if !ok {
		return nil, ErrUnknownKey
	}

	header := ciphertext[:headerLen]
	nonce := ciphertext[headerLen : headerLen+chacha20poly1305.NonceSizeX]
	sealed := ciphertext[headerLen+chacha20poly1305.NonceSizeX:]

	plain, err := a.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// NeedsRotation reports whether ciphertext was sealed with a key other than the primary.
func (k *Keyring) NeedsRotation(ciphertext []byte) bool {
	return len(ciphertext) > 1 && ciphertext[1] != k.primary
}
