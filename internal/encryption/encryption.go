// Package encryption seals API keys and other secrets with AES-256-GCM
// before they reach the settings table.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize = 32

	// pbkdf2Iterations follows the current OWASP recommendation for
	// PBKDF2-HMAC-SHA256.
	pbkdf2Iterations = 600000
	saltSize         = 16
)

// Encryptor seals and opens secrets with a single AES-256-GCM key.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor builds an Encryptor from a base64-encoded 32-byte key. An
// empty key generates a fresh random one; the encoded key is returned so
// the caller can persist it.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var keyBytes []byte

	switch {
	case key == "":
		keyBytes = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
		key = base64.StdEncoding.EncodeToString(keyBytes)
	case len(key) == keySize:
		// Raw 32-byte keys are accepted for tests.
		keyBytes = []byte(key)
	default:
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, "", fmt.Errorf("decoding encryption key: %w", err)
		}
		keyBytes = decoded
	}

	enc, err := fromKeyBytes(keyBytes)
	if err != nil {
		return nil, "", err
	}
	return enc, key, nil
}

// FromPassphrase derives an Encryptor from a human passphrase and salt
// using PBKDF2-HMAC-SHA256. The salt must stay stable across runs for
// the derived key to match; see LoadOrCreateSalt.
func FromPassphrase(passphrase string, salt []byte) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", saltSize, len(salt))
	}
	keyBytes := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	return fromKeyBytes(keyBytes)
}

// NewSalt returns a fresh random salt for FromPassphrase.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// LoadOrCreateSalt reads the base64-encoded salt stored at path, creating
// the file with a fresh salt on first use. The salt is not secret but a
// lost or altered salt makes every stored secret undecryptable.
func LoadOrCreateSalt(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		salt, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil {
			return nil, fmt.Errorf("decoding salt file %s: %w", path, decErr)
		}
		if len(salt) != saltSize {
			return nil, fmt.Errorf("salt file %s holds %d bytes, want %d", path, len(salt), saltSize)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading salt file: %w", err)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating salt directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(salt)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing salt file: %w", err)
	}
	return salt, nil
}

func fromKeyBytes(keyBytes []byte) (*Encryptor, error) {
	if len(keyBytes) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(keyBytes))
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64(nonce || ciphertext) produced by Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	nonceSize := e.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
