// Package blobfmt encodes and decodes the fixed on-disk container every
// encrypted blob is stored in:
//
//	offset 0   8 B   magic "RELAYUM1"
//	offset 8   12 B  IV
//	offset 20  16 B  GCM tag (finalized in place after the stream ends)
//	offset 36  32 B  SHA-256 of the plaintext
//	offset 68  ...   ciphertext
package blobfmt

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/crypto"
)

const (
	MagicLen   = 8
	HeaderLen  = MagicLen + crypto.IVLen + crypto.TagLen + 32
	DataOffset = HeaderLen

	tagOffset  = MagicLen + crypto.IVLen
	hashOffset = tagOffset + crypto.TagLen
)

var Magic = []byte("RELAYUM1")

// Header is the decoded fixed prefix of a blob.
type Header struct {
	IV        []byte
	Tag       []byte
	PlainHash []byte
}

// ReadHeader reads exactly the header bytes from r and verifies the magic.
// It never touches the ciphertext, so listing and validation stay cheap.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderLen)

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated blob header", apperr.ErrInfra)
	}

	if !bytes.Equal(buf[:MagicLen], Magic) {
		return nil, fmt.Errorf("%w: bad magic", apperr.ErrFormat)
	}

	h := &Header{
		IV:        make([]byte, crypto.IVLen),
		Tag:       make([]byte, crypto.TagLen),
		PlainHash: make([]byte, 32),
	}
	copy(h.IV, buf[MagicLen:tagOffset])
	copy(h.Tag, buf[tagOffset:hashOffset])
	copy(h.PlainHash, buf[hashOffset:])

	return h, nil
}

// ReadHeaderFile opens path just long enough to decode its header.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: blob missing", apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("open blob: %w", err)
	}
	defer f.Close()

	return ReadHeader(f)
}

// WriteHeaderPlaceholder writes magic + IV + zeroed tag and hash so the
// streaming encryptor can finalize both values in place once the stream ends.
func WriteHeaderPlaceholder(w io.Writer, iv []byte) error {
	if len(iv) != crypto.IVLen {
		return fmt.Errorf("%w: iv must be %d bytes", apperr.ErrValidation, crypto.IVLen)
	}

	buf := make([]byte, HeaderLen)
	copy(buf, Magic)
	copy(buf[MagicLen:], iv)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write blob header: %w", err)
	}

	return nil
}

// FinalizeHeader rewrites bytes 20..68 of an open blob with the real tag and
// plaintext hash.
func FinalizeHeader(f *os.File, tag, plainHash []byte) error {
	if len(tag) != crypto.TagLen || len(plainHash) != 32 {
		return fmt.Errorf("%w: bad tag or hash length", apperr.ErrValidation)
	}

	buf := make([]byte, crypto.TagLen+32)
	copy(buf, tag)
	copy(buf[crypto.TagLen:], plainHash)

	if _, err := f.WriteAt(buf, tagOffset); err != nil {
		return fmt.Errorf("finalize blob header: %w", err)
	}

	return nil
}
