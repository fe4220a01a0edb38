// Package crypto implements the symmetric encryption envelope that
// wraps every request and response body: encrypt(password, plaintext)
// -> ciphertext, decrypt(password, ciphertext) -> plaintext | failure.
// This uses the standard library's AES-GCM directly, the idiomatic Go
// choice for authenticated symmetric encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
)

// deriveKey turns a user's password into a fixed-size AES-256 key. The
// password itself is the shared secret; stretching it through SHA-256
// just gives AES a key of the width it requires.
func deriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// Encrypt seals plaintext under password, returning a nonce-prefixed
// ciphertext suitable for Decrypt.
func Encrypt(password string, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(password)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt under the same
// password. A decryption failure (wrong password, corrupted frame) is
// reported as ok == false rather than as an error, since every caller
// in this server treats that outcome identically: close the
// connection, no response.
func Decrypt(password string, ciphertext []byte) (plaintext []byte, ok bool) {
	gcm, err := newGCM(password)
	if err != nil {
		return nil, false
	}

	ns := gcm.NonceSize()
	if len(ciphertext) < ns {
		return nil, false
	}
	nonce, sealed := ciphertext[:ns], ciphertext[ns:]

	pt, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false
	}
	return pt, true
}

func newGCM(password string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
