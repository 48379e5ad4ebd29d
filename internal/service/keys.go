// Package service implements the ingest, egress, share and janitor pipelines
// on top of the storage engine and the quota accountant.
package service

import (
	"encoding/base64"
	"fmt"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"
	"relayum/file-api/pkg/crypto"
)

// SealUserKey derives a fresh master key from the user's password and seals
// it under the process metadata key. Called once at registration; the sealed
// form is what lets share recipients decrypt the owner's blobs later.
func SealUserKey(password string, metadataKey []byte) (sealed string, salt []byte, err error) {
	masterKey, salt, err := crypto.DeriveMasterKey(password, nil)
	if err != nil {
		return "", nil, err
	}

	sealed, err = crypto.SealMetadata(base64.StdEncoding.EncodeToString(masterKey), metadataKey)
	if err != nil {
		return "", nil, err
	}

	return sealed, salt, nil
}

// UnsealUserKey recovers a user's master key for ingest or egress.
func UnsealUserKey(user *model.User, metadataKey []byte) ([]byte, error) {
	if user.SealedKey == "" {
		return nil, fmt.Errorf("%w: user has no sealed key", apperr.ErrInfra)
	}

	var encoded string
	if err := crypto.OpenMetadata(user.SealedKey, metadataKey, &encoded); err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !crypto.KeyWellFormed(key) {
		return nil, fmt.Errorf("%w: sealed key is malformed", apperr.ErrInfra)
	}

	return key, nil
}
