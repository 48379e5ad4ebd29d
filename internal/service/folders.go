package service

import (
	"fmt"
	"path"
	"strings"
	"time"

	"relayum/file-api/model"
	"relayum/file-api/pkg/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Folder walks refuse to follow chains deeper than this. A well-formed tree
// never gets close; hitting the cap means the parent graph is corrupt.
const maxFolderDepth = 64

type Folders struct {
	DB *gorm.DB
}

func NewFolders(db *gorm.DB) *Folders {
	return &Folders{DB: db}
}

// FolderNode is one entry of the materialized forest.
type FolderNode struct {
	model.Folder
	FileCount int64         `json:"file_count"`
	Children  []*FolderNode `json:"children"`
}

// Create validates parent ownership and inserts the folder row. Duplicate
// names under one parent are allowed.
func (f *Folders) Create(userID, name string, parentID *uint) (*model.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: folder name is empty", apperr.ErrValidation)
	}

	if parentID != nil {
		if _, err := f.owned(f.DB, userID, *parentID); err != nil {
			return nil, err
		}
	}

	folder := &model.Folder{
		UserID:    userID,
		Name:      name,
		ParentID:  parentID,
		CreatedAt: time.Now().Unix(),
	}

	if err := f.DB.Create(folder).Error; err != nil {
		return nil, fmt.Errorf("%w: create folder, %v", apperr.ErrInfra, err)
	}

	return folder, nil
}

// Tree materializes the user's folder forest with per-folder file counts.
// Every row is owner-checked; rows whose parent chain is broken or cyclic
// are surfaced at the root rather than dropped.
func (f *Folders) Tree(userID string) ([]*FolderNode, error) {
	var folders []model.Folder
	if err := f.DB.Where("user_id = ?", userID).Order("id").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("%w: load folders, %v", apperr.ErrInfra, err)
	}

	type countRow struct {
		FolderID uint
		N        int64
	}

	var counts []countRow
	err := f.DB.
		Model(model.File{}).
		Where("user_id = ? AND folder_id IS NOT NULL", userID).
		Select("folder_id, COUNT(*) AS n").
		Group("folder_id").
		Scan(&counts).
		Error
	if err != nil {
		return nil, fmt.Errorf("%w: count files, %v", apperr.ErrInfra, err)
	}

	countByID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		countByID[c.FolderID] = c.N
	}

	nodes := make(map[uint]*FolderNode, len(folders))
	for _, folder := range folders {
		nodes[folder.ID] = &FolderNode{Folder: folder, FileCount: countByID[folder.ID]}
	}

	var roots []*FolderNode
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}

		parent, ok := nodes[*n.ParentID]
		if !ok || parent == n {
			// Broken or self-referential parent: surface at root
			roots = append(roots, n)
			continue
		}

		parent.Children = append(parent.Children, n)
	}

	return roots, nil
}

// Breadcrumb returns the ancestor chain of a folder, root first. Each hop is
// owner-checked individually so a share-move race can never splice another
// user's folder into the chain.
func (f *Folders) Breadcrumb(userID string, folderID uint) ([]model.Folder, error) {
	var chain []model.Folder

	current := &folderID
	for range maxFolderDepth {
		folder, err := f.owned(f.DB, userID, *current)
		if err != nil {
			return nil, err
		}

		chain = append([]model.Folder{*folder}, chain...)

		if folder.ParentID == nil {
			return chain, nil
		}

		current = folder.ParentID
	}

	return nil, fmt.Errorf("%w: folder chain exceeds depth cap", apperr.ErrInfra)
}

// EnsurePath creates any missing folder rows along a relative path like
// "photos/2026/01" under base and returns the deepest folder's ID. Used by
// folder uploads.
func (f *Folders) EnsurePath(tx *gorm.DB, userID string, base *uint, relPath string) (*uint, error) {
	parts := strings.Split(path.Clean(relPath), "/")

	current := base
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}

		if part == ".." {
			return nil, fmt.Errorf("%w: path traversal in relative path", apperr.ErrValidation)
		}

		var folder model.Folder

		q := tx.Where("user_id = ? AND name = ?", userID, part)
		if current == nil {
			q = q.Where("parent_id IS NULL")
		} else {
			q = q.Where("parent_id = ?", *current)
		}

		err := q.First(&folder).Error
		if err == gorm.ErrRecordNotFound {
			folder = model.Folder{
				UserID:    userID,
				Name:      part,
				ParentID:  current,
				CreatedAt: time.Now().Unix(),
			}

			if err := tx.Create(&folder).Error; err != nil {
				return nil, fmt.Errorf("%w: create path folder, %v", apperr.ErrInfra, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("%w: lookup path folder, %v", apperr.ErrInfra, err)
		}

		id := folder.ID
		current = &id
	}

	return current, nil
}

// FileWithPath pairs a file row with its path relative to the walked folder.
type FileWithPath struct {
	File    model.File
	RelPath string
}

// FilesRecursive lists every file under a folder with slash-joined relative
// paths, owner-checked per hop and depth-capped.
func (f *Folders) FilesRecursive(userID string, folderID uint) ([]FileWithPath, error) {
	if _, err := f.owned(f.DB, userID, folderID); err != nil {
		return nil, err
	}

	var out []FileWithPath
	if err := f.walk(userID, folderID, "", 0, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (f *Folders) walk(userID string, folderID uint, prefix string, depth int, out *[]FileWithPath) error {
	if depth >= maxFolderDepth {
		return fmt.Errorf("%w: folder tree exceeds depth cap", apperr.ErrInfra)
	}

	var files []model.File
	err := f.DB.
		Where("user_id = ? AND folder_id = ?", userID, folderID).
		Order("id").
		Find(&files).
		Error
	if err != nil {
		return fmt.Errorf("%w: list folder files, %v", apperr.ErrInfra, err)
	}

	for _, file := range files {
		*out = append(*out, FileWithPath{File: file, RelPath: path.Join(prefix, file.OriginalName)})
	}

	var subs []model.Folder
	err = f.DB.
		Where("user_id = ? AND parent_id = ?", userID, folderID).
		Order("id").
		Find(&subs).
		Error
	if err != nil {
		return fmt.Errorf("%w: list subfolders, %v", apperr.ErrInfra, err)
	}

	for _, sub := range subs {
		if err := f.walk(userID, sub.ID, path.Join(prefix, sub.Name), depth+1, out); err != nil {
			return err
		}
	}

	return nil
}

// Move reparents a folder after validating new-parent ownership and the
// absence of cycles. The moved row is locked for the duration.
func (f *Folders) Move(userID string, folderID uint, newParent *uint) error {
	return f.DB.Transaction(func(tx *gorm.DB) error {
		var folder model.Folder

		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND id = ?", userID, folderID).
			First(&folder).
			Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: folder missing", apperr.ErrNotFound)
			}

			return fmt.Errorf("%w: load folder, %v", apperr.ErrInfra, err)
		}

		if newParent != nil {
			if *newParent == folderID {
				return fmt.Errorf("%w: folder cannot be its own parent", apperr.ErrValidation)
			}

			// Walk up from the new parent; finding the moved folder there
			// means the move would close a cycle
			current := newParent
			for range maxFolderDepth {
				parent, err := f.owned(tx, userID, *current)
				if err != nil {
					return err
				}

				if parent.ID == folderID {
					return fmt.Errorf("%w: move would create a cycle", apperr.ErrValidation)
				}

				if parent.ParentID == nil {
					break
				}

				current = parent.ParentID
			}
		}

		return tx.
			Model(model.Folder{}).
			Where("id = ?", folderID).
			Update("parent_id", newParent).
			Error
	})
}

// Delete removes a folder subtree: contained files (blobs, shares, quota)
// and folder rows, all inside one transaction.
func (f *Folders) Delete(userID string, folderID uint, ing *Ingestor) error {
	files, err := f.FilesRecursive(userID, folderID)
	if err != nil {
		return err
	}

	for _, fw := range files {
		if err := ing.DeleteFile(userID, fw.File.ID); err != nil {
			return err
		}
	}

	// Collect the folder subtree cycle-safely before deleting rows
	ids := []uint{folderID}
	seen := map[uint]bool{folderID: true}

	for i := 0; i < len(ids) && len(ids) <= 1<<16; i++ {
		var subs []uint
		err := f.DB.
			Model(model.Folder{}).
			Where("user_id = ? AND parent_id = ?", userID, ids[i]).
			Pluck("id", &subs).
			Error
		if err != nil {
			return fmt.Errorf("%w: collect subtree, %v", apperr.ErrInfra, err)
		}

		for _, id := range subs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	return f.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id IN ?", ids).Delete(model.Share{}).Error; err != nil {
			return fmt.Errorf("%w: delete folder shares, %v", apperr.ErrInfra, err)
		}

		if err := tx.Where("user_id = ? AND id IN ?", userID, ids).Delete(model.Folder{}).Error; err != nil {
			return fmt.Errorf("%w: delete folders, %v", apperr.ErrInfra, err)
		}

		return nil
	})
}

func (f *Folders) owned(tx *gorm.DB, userID string, folderID uint) (*model.Folder, error) {
	var folder model.Folder

	err := tx.Where("id = ?", folderID).First(&folder).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: folder missing", apperr.ErrNotFound)
		}

		return nil, fmt.Errorf("%w: load folder, %v", apperr.ErrInfra, err)
	}

	// Explicit per-row owner check, never trusted transitively
	if folder.UserID != userID {
		return nil, fmt.Errorf("%w: folder belongs to another user", apperr.ErrForbidden)
	}

	return &folder, nil
}
