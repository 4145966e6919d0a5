// Package secret sella las credenciales guardadas en reposo (contraseñas IRP y
// client secrets) con NaCl secretbox.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidKey = errors.New("secret: key must be 32 bytes, hex or base64 encoded")
	ErrOpen       = errors.New("secret: cannot open sealed value")
)

// Box sella y abre valores con una clave simétrica.
type Box struct {
	key [keySize]byte
}

// New interpreta una clave de 32 bytes en 64 caracteres hex o base64 estándar.
func New(encoded string) (*Box, error) {
	encoded = strings.TrimSpace(encoded)
	var raw []byte
	if b, err := hex.DecodeString(encoded); err == nil && len(b) == keySize {
		raw = b
	} else if b, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(b) == keySize {
		raw = b
	} else {
		return nil, ErrInvalidKey
	}
	box := &Box{}
	copy(box.key[:], raw)
	return box, nil
}

// FromPassphrase deriva la clave con SHA-256. Solo para desarrollo.
func FromPassphrase(passphrase string) *Box {
	return &Box{key: sha256.Sum256([]byte(passphrase))}
}

// Seal devuelve base64(nonce || ciphertext). Un texto vacío se sella como "".
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open revierte Seal. Valores alterados o ajenos fallan con ErrOpen.
func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrOpen
	}
	return string(plain), nil
}
