package service

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymousUploadValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Anon.Upload(context.Background(), nil, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	env.Anon.MaxFileSize = 10
	_, err = env.Anon.Upload(context.Background(), []*Upload{{
		Filename: "big.bin", DeclaredSize: 100, Src: bytes.NewReader(make([]byte, 100)),
	}}, "")
	assert.ErrorIs(t, err, apperr.ErrTooLarge)
}

func TestAnonymousLifecycle(t *testing.T) {
	env := newTestEnv(t)

	share, err := env.Anon.Upload(context.Background(), []*Upload{
		{Filename: "one.txt", Mime: "text/plain", DeclaredSize: 5, Src: bytes.NewReader([]byte("first"))},
		{Filename: "two.txt", Mime: "text/plain", DeclaredSize: 6, Src: bytes.NewReader([]byte("second"))},
	}, "hunter2")
	require.NoError(t, err)
	require.Len(t, share.Token, 64)
	require.Len(t, share.Files, 2)
	assert.Greater(t, share.ExpiresAt, time.Now().Unix())

	_, reason, err := env.Anon.Resolve(share.Token, "")
	require.NoError(t, err)
	assert.Equal(t, ResolvePasswordRequired, reason)

	_, reason, err = env.Anon.Resolve(share.Token, "wrong")
	require.NoError(t, err)
	assert.Equal(t, ResolveBadPassword, reason)

	resolved, reason, err := env.Anon.Resolve(share.Token, "hunter2")
	require.NoError(t, err)
	require.Equal(t, ResolveOK, reason)
	require.Len(t, resolved.Files, 2)

	blob, file, err := env.Anon.Open(resolved, resolved.Files[0].ID)
	require.NoError(t, err)

	out, err := io.ReadAll(blob)
	require.NoError(t, err)
	blob.Close()
	assert.Equal(t, []byte("first"), out)
	assert.Equal(t, "one.txt", file.OriginalName)

	_, _, err = env.Anon.Open(resolved, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAnonymousAccessLimit(t *testing.T) {
	env := newTestEnv(t)
	env.Anon.MaxAccesses = 2

	share, err := env.Anon.Upload(context.Background(), []*Upload{
		{Filename: "a.txt", Mime: "text/plain", DeclaredSize: 1, Src: bytes.NewReader([]byte("x"))},
	}, "")
	require.NoError(t, err)

	require.NoError(t, env.Anon.RecordAccess(share.ID))
	require.NoError(t, env.Anon.RecordAccess(share.ID))

	// Cap reached: both the recorder and the resolver refuse
	assert.ErrorIs(t, env.Anon.RecordAccess(share.ID), apperr.ErrGone)

	_, reason, err := env.Anon.Resolve(share.Token, "")
	require.NoError(t, err)
	assert.Equal(t, ResolveAccessLimitReached, reason)
}

func TestAnonymousPurgeExpired(t *testing.T) {
	env := newTestEnv(t)

	share, err := env.Anon.Upload(context.Background(), []*Upload{
		{Filename: "a.txt", Mime: "text/plain", DeclaredSize: 1, Src: bytes.NewReader([]byte("x"))},
	}, "")
	require.NoError(t, err)

	keep, err := env.Anon.Upload(context.Background(), []*Upload{
		{Filename: "b.txt", Mime: "text/plain", DeclaredSize: 1, Src: bytes.NewReader([]byte("y"))},
	}, "")
	require.NoError(t, err)

	require.NoError(t, env.DB.Model(model.AnonymousShare{}).
		Where("id = ?", share.ID).
		Update("expires_at", 1).Error)

	n, err := env.Anon.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, reason, err := env.Anon.Resolve(share.Token, "")
	require.NoError(t, err)
	assert.Equal(t, ResolveNotFound, reason)

	var orphans int64
	require.NoError(t, env.DB.Model(model.AnonymousFile{}).
		Where("share_id = ?", share.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	// The other tenancy is untouched
	resolved, reason, err := env.Anon.Resolve(keep.Token, "")
	require.NoError(t, err)
	require.Equal(t, ResolveOK, reason)

	blob, _, err := env.Anon.Open(resolved, resolved.Files[0].ID)
	require.NoError(t, err)
	blob.Close()
}
