package dctdm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	saltSize         = 16
	keySize          = 32 // AES-256
)

// Transform seals and opens the payload before it reaches the DCTDM frame.
// Embed calls Seal on the plaintext payload; Extract calls Open on the
// recovered bytes.
type Transform interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// IdentityTransform passes the payload through unchanged; it is used when
// Config.Passphrase is nil.
type IdentityTransform struct{}

func (IdentityTransform) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (IdentityTransform) Open(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// PassphraseTransform derives an AES-256-GCM key from a passphrase via
// PBKDF2-HMAC-SHA256 and prepends a random salt to the ciphertext.
type PassphraseTransform struct {
	Passphrase string
}

func NewTransform(passphrase *string) Transform {
	if passphrase == nil {
		return IdentityTransform{}
	}
	return PassphraseTransform{Passphrase: *passphrase}
}

func (t PassphraseTransform) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, NewError(MalformedCiphertext, -1, "failed to generate salt: "+err.Error())
	}
	gcm, err := t.gcm(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, NewError(MalformedCiphertext, -1, "failed to generate nonce: "+err.Error())
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, saltSize+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (t PassphraseTransform) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < saltSize {
		return nil, NewError(MalformedCiphertext, -1, "ciphertext shorter than salt")
	}
	salt := ciphertext[:saltSize]
	gcm, err := t.gcm(salt)
	if err != nil {
		return nil, err
	}
	rest := ciphertext[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, NewError(MalformedCiphertext, -1, "ciphertext shorter than nonce")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, NewError(AuthenticationFailed, -1, "GCM authentication failed")
	}
	return plaintext, nil
}

func (t PassphraseTransform) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(t.Passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewError(MalformedCiphertext, -1, "failed to construct AES cipher: "+err.Error())
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewError(MalformedCiphertext, -1, "failed to construct GCM: "+err.Error())
	}
	return gcm, nil
}
