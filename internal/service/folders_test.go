package service

import (
	"testing"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", "alice")

	_, err := env.Folders.Create("u1", "  ", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	missing := uint(999)
	_, err = env.Folders.Create("u1", "orphan", &missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFolderTree(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "u1", "alice")
	env.addUser(t, "u2", "bob")

	root, err := env.Folders.Create("u1", "root", nil)
	require.NoError(t, err)
	child, err := env.Folders.Create("u1", "child", &root.ID)
	require.NoError(t, err)
	_, err = env.Folders.Create("u1", "other", nil)
	require.NoError(t, err)

	// A foreign folder must never show up
	_, err = env.Folders.Create("u2", "bobs", nil)
	require.NoError(t, err)

	ingestFixture(t, env, alice, "a.txt", &child.ID)
	ingestFixture(t, env, alice, "b.txt", &child.ID)

	tree, err := env.Folders.Tree("u1")
	require.NoError(t, err)
	require.Len(t, tree, 2)

	var rootNode *FolderNode
	for _, n := range tree {
		if n.Name == "root" {
			rootNode = n
		}
		assert.Equal(t, "u1", n.UserID)
	}

	require.NotNil(t, rootNode)
	require.Len(t, rootNode.Children, 1)
	assert.Equal(t, "child", rootNode.Children[0].Name)
	assert.Equal(t, int64(2), rootNode.Children[0].FileCount)
}

func TestBreadcrumbOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", "alice")
	env.addUser(t, "u2", "bob")

	folder, err := env.Folders.Create("u1", "mine", nil)
	require.NoError(t, err)

	_, err = env.Folders.Breadcrumb("u2", folder.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestFolderMoveCycleDefense(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", "alice")

	a, err := env.Folders.Create("u1", "a", nil)
	require.NoError(t, err)
	b, err := env.Folders.Create("u1", "b", &a.ID)
	require.NoError(t, err)
	c, err := env.Folders.Create("u1", "c", &b.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.Folders.Move("u1", a.ID, &a.ID), apperr.ErrValidation)
	assert.ErrorIs(t, env.Folders.Move("u1", a.ID, &c.ID), apperr.ErrValidation)

	// A legal reparent still works
	require.NoError(t, env.Folders.Move("u1", c.ID, &a.ID))

	crumbs, err := env.Folders.Breadcrumb("u1", c.ID)
	require.NoError(t, err)
	require.Len(t, crumbs, 2)
	assert.Equal(t, "a", crumbs[0].Name)
	assert.Equal(t, "c", crumbs[1].Name)
}

func TestEnsurePathRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", "alice")

	_, err := env.Folders.EnsurePath(env.DB, "u1", nil, "../escape")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEnsurePathIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1", "alice")

	first, err := env.Folders.EnsurePath(env.DB, "u1", nil, "photos/2026")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := env.Folders.EnsurePath(env.DB, "u1", nil, "photos/2026")
	require.NoError(t, err)
	assert.Equal(t, *first, *second)

	var n int64
	require.NoError(t, env.DB.Model(model.Folder{}).Where("user_id = ?", "u1").Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestFolderDeleteSubtree(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "u1", "alice")

	root, err := env.Folders.Create("u1", "root", nil)
	require.NoError(t, err)
	sub, err := env.Folders.Create("u1", "sub", &root.ID)
	require.NoError(t, err)

	ingestFixture(t, env, alice, "a.txt", &root.ID)
	nested := ingestFixture(t, env, alice, "b.txt", &sub.ID)

	_, err = env.Shares.Create(&CreateOpts{
		SharedBy: "u1", FolderRowID: &sub.ID, Public: true,
	})
	require.NoError(t, err)

	require.NoError(t, env.Folders.Delete("u1", root.ID, env.Ingest))

	var folders, files, shares int64
	require.NoError(t, env.DB.Model(model.Folder{}).Count(&folders).Error)
	require.NoError(t, env.DB.Model(model.File{}).Count(&files).Error)
	require.NoError(t, env.DB.Model(model.Share{}).Count(&shares).Error)
	assert.Zero(t, folders)
	assert.Zero(t, files)
	assert.Zero(t, shares)

	assert.Zero(t, ledgerUsed(t, env, "u1"))

	_, _, err = env.Egress.OpenOwnerFile("u1", nested.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
