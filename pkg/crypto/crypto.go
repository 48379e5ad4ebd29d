// Package crypto holds the fixed cryptographic primitives of the storage
// core: PBKDF2 password -> master key, HKDF master key -> per-file key,
// AES-256-GCM for buffers and sidecar metadata, and the AES-CTR stream used
// by the storage engine for blobs too large to buffer.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"relayum/file-api/pkg/apperr"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeyLen  = 32
	IVLen   = 12
	TagLen  = 16
	SaltLen = 32

	pbkdf2Iterations = 100_000
)

// DeriveMasterKey stretches a user password into a 32-byte master key. A nil
// salt means "generate one"; the salt actually used is always returned so it
// can be persisted next to the user row.
func DeriveMasterKey(password string, salt []byte) (key, outSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, SaltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, fmt.Errorf("generate salt: %w", err)
		}
	}

	if len(salt) != SaltLen {
		return nil, nil, fmt.Errorf("%w: salt must be %d bytes", apperr.ErrValidation, SaltLen)
	}

	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, KeyLen, sha256.New), salt, nil
}

// DeriveFileKey derives the per-file key deterministically from the master
// key and the file ID, so no per-file key material has to be stored.
func DeriveFileKey(masterKey []byte, fileID string) ([]byte, error) {
	if !KeyWellFormed(masterKey) {
		return nil, fmt.Errorf("%w: malformed master key", apperr.ErrValidation)
	}

	key := make([]byte, KeyLen)
	r := hkdf.New(sha256.New, masterKey, nil, []byte("file:"+fileID))

	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}

	return key, nil
}

// EncryptBuffer seals a whole in-memory plaintext with AES-256-GCM and a
// fresh IV. The tag is returned separately because the blob container stores
// it in a fixed header slot.
func EncryptBuffer(key, plaintext []byte) (ciphertext, iv, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	return sealed[:len(sealed)-TagLen], iv, sealed[len(sealed)-TagLen:], nil
}

// DecryptBuffer reverses EncryptBuffer. Tag verification failure surfaces as
// an integrity error, never as garbage plaintext.
func DecryptBuffer(key, ciphertext, iv, tag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: gcm tag mismatch", apperr.ErrIntegrity)
	}

	return plaintext, nil
}

// SealMetadata encrypts an arbitrary record with the process-wide metadata
// key and packs iv||ciphertext||tag into one base64 string for the sidecar.
func SealMetadata(v any, key []byte) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	ct, iv, tag, err := EncryptBuffer(key, raw)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, IVLen+len(ct)+TagLen)
	blob = append(blob, iv...)
	blob = append(blob, ct...)
	blob = append(blob, tag...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// OpenMetadata unseals a string produced by SealMetadata into v.
func OpenMetadata(sealed string, key []byte, v any) error {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return fmt.Errorf("%w: sidecar is not base64", apperr.ErrFormat)
	}

	if len(blob) < IVLen+TagLen {
		return fmt.Errorf("%w: sidecar too short", apperr.ErrFormat)
	}

	iv := blob[:IVLen]
	ct := blob[IVLen : len(blob)-TagLen]
	tag := blob[len(blob)-TagLen:]

	raw, err := DecryptBuffer(key, ct, iv, tag)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}

	return nil
}

// KeyWellFormed rejects keys that are the wrong length, all zeros, or a
// single repeated byte. Those show up when a config value is mistyped.
func KeyWellFormed(key []byte) bool {
	if len(key) != KeyLen {
		return false
	}

	first := key[0]
	for _, b := range key[1:] {
		if b != first {
			return true
		}
	}

	return false
}

// MetadataKeyFromHex decodes and validates the process-wide metadata key
// loaded from configuration. The process must refuse to start on failure.
func MetadataKeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata key is not hex", apperr.ErrConfig)
	}

	if !KeyWellFormed(key) {
		return nil, fmt.Errorf("%w: metadata key must be %d random bytes", apperr.ErrConfig, KeyLen)
	}

	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if !KeyWellFormed(key) {
		return nil, fmt.Errorf("%w: malformed key", apperr.ErrValidation)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	return gcm, nil
}
